package frontier

import (
	"context"
	"math"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Portfolio is a fully invested, long-only allocation with its implied moments.
type Portfolio struct {
	Weights    []float64 `json:"weights"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
}

// NewPortfolio evaluates weights against the moments.
func NewPortfolio(m Moments, weights []float64) Portfolio {
	p := Portfolio{Weights: append([]float64(nil), weights...)}
	if len(weights) == 0 || len(weights) != m.Len() {
		return p
	}
	p.Return = floats.Dot(m.Mu, weights)
	p.Volatility = math.Sqrt(math.Max(variance(m.Cov, weights), 0))
	return p
}

// FrontierPoint is one accepted sample of the efficient frontier sweep.
type FrontierPoint struct {
	Volatility float64   `json:"volatility"`
	Return     float64   `json:"return"`
	Weights    []float64 `json:"weights"`
	// Members lists assets holding more than the materiality threshold.
	Members []int `json:"members"`
}

// Frontier is the result of an efficient frontier sweep.
type Frontier struct {
	Points []FrontierPoint `json:"points"`
	// Members is the sorted union of all point members.
	Members []int `json:"members"`
	// Truncated is set when the sweep stopped on a missed volatility target
	// or a return regression.
	Truncated bool `json:"truncated"`
}

// OptimizerConfig holds the portfolio optimizer settings.
type OptimizerConfig struct {
	Samples       int
	Threshold     float64
	RiskFreeRate  float64
	Workers       int
	MaxIterations int
	Tolerance     float64
}

// DefaultOptimizerConfig returns the standard sweep settings.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Samples:      100,
		Threshold:    0.1,
		RiskFreeRate: 0.03,
		Workers:      runtime.NumCPU(),
	}
}

// Optimizer solves long-only allocation problems over a set of moments.
// Every solve starts from equal weights, so results depend only on the moments.
type Optimizer struct {
	cfg    OptimizerConfig
	logger *zap.Logger
}

func NewOptimizer(cfg OptimizerConfig, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Optimizer{cfg: cfg, logger: logger}
}

const (
	volatilityFloor     = 1e-8
	constraintTolerance = 1e-8
	// targetTolerance bounds |volatility - target| for an accepted frontier sample.
	targetTolerance = 1e-6
	maxOuterIterations  = 25
	initialPenalty      = 10.0
	maxPenalty          = 1e10
)

// EfficientFrontier sweeps target volatilities from the lowest to the highest
// asset volatility and maximizes return at each target. Samples are accepted
// while they meet their target volatility and the return does not decrease;
// the sweep stops at the first sample that fails either.
func (o *Optimizer) EfficientFrontier(ctx context.Context, m Moments) (Frontier, error) {
	n := m.Len()
	if n == 0 {
		return Frontier{}, nil
	}

	targets := o.targets(m.Sigma())
	solutions := make([][]float64, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, ok := o.maxReturnAt(m, target)
			if !ok {
				o.logger.Debug("frontier sample not converged", zap.Int("sample", i), zap.Float64("target_volatility", target))
			}
			solutions[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Frontier{}, err
	}

	var out Frontier
	members := make(map[int]struct{})
	best := math.Inf(-1)
	for i, w := range solutions {
		ret := floats.Dot(m.Mu, w)
		vol := math.Sqrt(math.Max(variance(m.Cov, w), 0))
		if math.Abs(vol-targets[i]) > targetTolerance {
			o.logger.Info("frontier sweep stopped on missed volatility target",
				zap.Int("sample", i),
				zap.Float64("target_volatility", targets[i]),
				zap.Float64("volatility", vol),
				zap.Float64("return", ret),
			)
			out.Truncated = true
			break
		}
		if ret < best {
			o.logger.Info("frontier sweep stopped on return regression",
				zap.Int("sample", i),
				zap.Float64("target_volatility", targets[i]),
				zap.Float64("return", ret),
				zap.Float64("best_return", best),
			)
			out.Truncated = true
			break
		}
		best = ret

		point := FrontierPoint{Volatility: vol, Return: ret, Weights: w}
		for j, wj := range w {
			if wj > o.cfg.Threshold {
				point.Members = append(point.Members, j)
				members[j] = struct{}{}
			}
		}
		out.Points = append(out.Points, point)
	}

	for j := range members {
		out.Members = append(out.Members, j)
	}
	sort.Ints(out.Members)
	return out, nil
}

func (o *Optimizer) targets(sigma []float64) []float64 {
	lo, hi := floats.Min(sigma), floats.Max(sigma)
	if o.cfg.Samples == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, o.cfg.Samples), lo, hi)
}

// maxReturnAt maximizes return subject to volatility == target using an
// augmented Lagrangian on the volatility constraint.
func (o *Optimizer) maxReturnAt(m Moments, target float64) ([]float64, bool) {
	n := m.Len()
	sw := make([]float64, n)
	lambda, penalty := 0.0, initialPenalty

	obj := func(w, grad []float64) float64 {
		vol := covTimes(m.Cov, w, sw)
		h := vol - target
		scale := (lambda + penalty*h) / vol
		for i := range grad {
			grad[i] = -m.Mu[i] + scale*sw[i]
		}
		return -floats.Dot(m.Mu, w) + lambda*h + 0.5*penalty*h*h
	}

	w := equalWeights(n)
	prev := math.Inf(1)
	for outer := 0; outer < maxOuterIterations; outer++ {
		w, _ = minimizeSimplex(obj, w, o.settings())
		h := math.Sqrt(math.Max(variance(m.Cov, w), 0)) - target
		if math.Abs(h) < constraintTolerance {
			return w, true
		}
		lambda += penalty * h
		if math.Abs(h) > 0.25*prev {
			penalty = math.Min(penalty*10, maxPenalty)
		}
		prev = math.Abs(h)
	}
	return w, false
}

// Tangency maximizes the Sharpe ratio against the configured risk-free rate.
func (o *Optimizer) Tangency(m Moments) Portfolio {
	n := m.Len()
	if n == 0 {
		return Portfolio{}
	}
	rf := o.cfg.RiskFreeRate
	sw := make([]float64, n)

	obj := func(w, grad []float64) float64 {
		vol := covTimes(m.Cov, w, sw)
		excess := floats.Dot(m.Mu, w) - rf
		for i := range grad {
			grad[i] = -m.Mu[i]/vol + excess*sw[i]/(vol*vol*vol)
		}
		return -excess / vol
	}

	w, ok := minimizeSimplex(obj, equalWeights(n), o.settings())
	if !ok {
		o.logger.Warn("tangency solve not converged")
	}
	return NewPortfolio(m, w)
}

// MinVolatility minimizes portfolio volatility.
func (o *Optimizer) MinVolatility(m Moments) Portfolio {
	n := m.Len()
	if n == 0 {
		return Portfolio{}
	}
	sw := make([]float64, n)

	// Variance shares its minimizer with volatility and stays smooth at zero.
	obj := func(w, grad []float64) float64 {
		covTimes(m.Cov, w, sw)
		for i := range grad {
			grad[i] = 2 * sw[i]
		}
		return floats.Dot(w, sw)
	}

	w, ok := minimizeSimplex(obj, equalWeights(n), o.settings())
	if !ok {
		o.logger.Warn("min volatility solve not converged")
	}
	return NewPortfolio(m, w)
}

// RiskParity weights assets by inverse volatility. Zero-volatility assets,
// when present, share the whole allocation equally.
func RiskParity(m Moments) Portfolio {
	sigma := m.Sigma()
	n := len(sigma)
	if n == 0 {
		return Portfolio{}
	}

	w := make([]float64, n)
	riskless := 0
	for _, s := range sigma {
		if s <= 0 {
			riskless++
		}
	}
	if riskless > 0 {
		for i, s := range sigma {
			if s <= 0 {
				w[i] = 1 / float64(riskless)
			}
		}
		return NewPortfolio(m, w)
	}

	for i, s := range sigma {
		w[i] = 1 / s
	}
	floats.Scale(1/floats.Sum(w), w)
	return NewPortfolio(m, w)
}

// Uniform returns the equal-weight portfolio.
func Uniform(m Moments) Portfolio {
	return NewPortfolio(m, equalWeights(m.Len()))
}

func (o *Optimizer) settings() solverSettings {
	return solverSettings{MaxIterations: o.cfg.MaxIterations, Tolerance: o.cfg.Tolerance}
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// covTimes writes cov*w into dst and returns the floored portfolio volatility.
func covTimes(cov *mat.SymDense, w, dst []float64) float64 {
	n := len(w)
	mat.NewVecDense(n, dst).MulVec(cov, mat.NewVecDense(n, w))
	return math.Sqrt(math.Max(floats.Dot(w, dst), volatilityFloor*volatilityFloor))
}

func variance(cov *mat.SymDense, w []float64) float64 {
	if cov == nil {
		return 0
	}
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, cov, v)
}
