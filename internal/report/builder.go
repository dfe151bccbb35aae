package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"defiFrontier/internal/frontier"
)

// Config holds report settings.
type Config struct {
	WindowDays     int
	EstimationDays int
	EvaluationDays int
	// MinWeight is the smallest weight listed in portfolio tables.
	MinWeight float64
	Optimizer frontier.OptimizerConfig
}

// DefaultConfig returns the standard 90 day report with a 90/30 day backtest.
func DefaultConfig() Config {
	return Config{
		WindowDays:     90,
		EstimationDays: 90,
		EvaluationDays: 30,
		MinWeight:      1e-3,
		Optimizer:      frontier.DefaultOptimizerConfig(),
	}
}

// Builder runs the statistics pipeline and assembles a Report.
type Builder struct {
	cfg       Config
	optimizer *frontier.Optimizer
	logger    *zap.Logger
	now       func() time.Time
}

func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:       cfg,
		optimizer: frontier.NewOptimizer(cfg.Optimizer, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Build reconstructs the trailing window, estimates moments, solves the
// named portfolios and backtests them.
func (b *Builder) Build(ctx context.Context, pools []frontier.PoolSeries) (*Report, error) {
	window := frontier.Reconstruct(pools, b.cfg.WindowDays)
	for _, ex := range window.Excluded {
		b.logger.Info("pool excluded", zap.String("pool", ex.Asset.ID), zap.String("name", ex.Asset.Name), zap.String("reason", ex.Reason))
	}

	m := frontier.Estimate(window)
	for _, ex := range m.Outliers {
		b.logger.Info("asset removed", zap.String("pool", ex.Asset.ID), zap.String("name", ex.Asset.Name), zap.String("reason", ex.Reason))
	}
	b.logger.Info("moments estimated", zap.Int("assets", m.Len()), zap.Int("days", m.Days))

	rep := &Report{
		GeneratedAt: b.now().UTC(),
		Assets:      []AssetRow{},
		Frontier:    []FrontierLine{},
		Excluded:    nonNil(window.Excluded),
		Outliers:    nonNil(m.Outliers),
	}
	if len(window.Index) > 0 {
		rep.WindowStart = window.Index[0]
		rep.WindowEnd = window.Index[len(window.Index)-1]
	}

	front, err := b.optimizer.EfficientFrontier(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("efficient frontier: %w", err)
	}
	rep.FrontierTruncated = front.Truncated
	for _, p := range front.Points {
		rep.Frontier = append(rep.Frontier, FrontierLine{Volatility: p.Volatility, Return: p.Return})
	}

	onFrontier := make(map[int]bool, len(front.Members))
	for _, j := range front.Members {
		onFrontier[j] = true
	}
	sigma := m.Sigma()
	rep.FrontierAssets = []AssetRow{}
	for j, asset := range m.Assets {
		row := AssetRow{
			Name:       asset.Name,
			Protocol:   asset.Protocol,
			Address:    asset.ID,
			Return:     m.Mu[j],
			Volatility: sigma[j],
			OnFrontier: onFrontier[j],
		}
		rep.Assets = append(rep.Assets, row)
		if row.OnFrontier {
			rep.FrontierAssets = append(rep.FrontierAssets, row)
		}
	}

	uniform := frontier.Uniform(m)
	rep.Uniform = PortfolioSummary{Return: uniform.Return, Volatility: uniform.Volatility}
	rep.Tangency = b.summarize(m, b.optimizer.Tangency(m))
	rep.MinVolatility = b.summarize(m, b.optimizer.MinVolatility(m))
	rep.RiskParity = b.summarize(m, frontier.RiskParity(m))

	bt, err := b.backtest(pools)
	if err != nil {
		return nil, err
	}
	rep.Backtest = bt
	return rep, nil
}

// backtest estimates on the first EstimationDays return rows of an
// estimation+evaluation window and evaluates on the last EvaluationDays rows.
func (b *Builder) backtest(pools []frontier.PoolSeries) (*Backtests, error) {
	est, eval := b.cfg.EstimationDays, b.cfg.EvaluationDays
	window := frontier.Reconstruct(pools, est+eval+1)
	days := window.Days()
	split := days - eval
	if eval <= 0 || split < 2 {
		b.logger.Warn("history too short for backtest", zap.Int("days", days), zap.Int("evaluation_days", eval))
		return nil, nil
	}
	from := split - est
	if from < 0 {
		from = 0
	}

	m := frontier.Estimate(window.Slice(from, split))
	if m.Len() == 0 {
		b.logger.Warn("no assets left for backtest")
		return nil, nil
	}
	ids := make([]string, m.Len())
	for j, a := range m.Assets {
		ids[j] = a.ID
	}
	evaluation := window.Slice(split, days).Select(ids)
	returns := evaluation.Total()

	out := &Backtests{
		EstimationStart: window.Index[from],
		EvaluationStart: evaluation.Index[0],
		EvaluationEnd:   evaluation.Index[len(evaluation.Index)-1],
	}
	portfolios := []struct {
		dst     *BacktestResult
		weights []float64
	}{
		{&out.Uniform, frontier.Uniform(m).Weights},
		{&out.Tangency, b.optimizer.Tangency(m).Weights},
		{&out.MinVolatility, b.optimizer.MinVolatility(m).Weights},
		{&out.RiskParity, frontier.RiskParity(m).Weights},
	}
	for _, p := range portfolios {
		perf, err := frontier.Backtest(p.weights, returns)
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		*p.dst = BacktestResult{Return: perf.TotalReturn, MaxDrawdown: perf.MaxDrawdown, Cumulative: perf.Cumulative}
	}
	return out, nil
}

func (b *Builder) summarize(m frontier.Moments, p frontier.Portfolio) PortfolioSummary {
	out := PortfolioSummary{Return: p.Return, Volatility: p.Volatility}
	for j, w := range p.Weights {
		if w <= b.cfg.MinWeight {
			continue
		}
		a := m.Assets[j]
		out.Holdings = append(out.Holdings, WeightRow{Weight: w, Name: a.Name, Protocol: a.Protocol, Address: a.ID})
	}
	sort.SliceStable(out.Holdings, func(i, j int) bool { return out.Holdings[i].Weight > out.Holdings[j].Weight })
	return out
}

// LogSummary writes the headline numbers of a report.
func LogSummary(logger *zap.Logger, rep *Report) {
	logger.Info("frontier report",
		zap.Int("assets", len(rep.Assets)),
		zap.Int("frontier_points", len(rep.Frontier)),
		zap.Int("frontier_assets", len(rep.FrontierAssets)),
		zap.Int("excluded", len(rep.Excluded)),
		zap.Int("outliers", len(rep.Outliers)),
		zap.Float64("tangency_return", rep.Tangency.Return),
		zap.Float64("tangency_volatility", rep.Tangency.Volatility),
	)
	if rep.Backtest == nil {
		return
	}
	for _, row := range []struct {
		name string
		r    BacktestResult
	}{
		{"uniform", rep.Backtest.Uniform},
		{"tangency", rep.Backtest.Tangency},
		{"min_volatility", rep.Backtest.MinVolatility},
		{"risk_parity", rep.Backtest.RiskParity},
	} {
		logger.Info("backtest",
			zap.String("portfolio", row.name),
			zap.String("return", fmt.Sprintf("%.2f%%", row.r.Return*100)),
			zap.String("max_drawdown", fmt.Sprintf("%.2f%%", row.r.MaxDrawdown*100)),
		)
	}
}

func nonNil(in []frontier.Exclusion) []frontier.Exclusion {
	if in == nil {
		return []frontier.Exclusion{}
	}
	return in
}
