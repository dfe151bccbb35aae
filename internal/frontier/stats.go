package frontier

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DaysPerYear annualizes daily statistics.
const DaysPerYear = 365

// Moments is an annualized return vector and covariance matrix over one asset ordering.
type Moments struct {
	Assets []Asset
	Mu     []float64
	// Cov is nil when no asset survived.
	Cov *mat.SymDense
	// Days is the number of daily return rows the estimate is based on.
	Days     int
	Outliers []Exclusion
}

// Estimate computes annualized moments from a window's total daily returns and
// drops assets whose return or volatility falls outside the IQR fence.
//
// The covariance of the surviving assets is recomputed from their return columns.
// The surviving assets keep their relative order.
func Estimate(w *Window) Moments {
	x := w.Total()
	if x == nil || w.Days() < 2 {
		m := Moments{Days: w.Days()}
		for _, a := range w.Assets {
			m.Outliers = append(m.Outliers, Exclusion{Asset: a, Reason: "insufficient history"})
		}
		return m
	}

	mu := annualReturns(x)
	sigma := volatilities(annualCovariance(x))

	muLo, muHi, _ := iqrFence(mu)
	sigmaLo, sigmaHi, _ := iqrFence(sigma)

	m := Moments{Days: w.Days()}
	keep := make([]int, 0, len(mu))
	for j, a := range w.Assets {
		switch {
		case !isFinite(mu[j]) || !isFinite(sigma[j]):
			m.Outliers = append(m.Outliers, Exclusion{Asset: a, Reason: "non-finite estimate"})
		case mu[j] < muLo || mu[j] > muHi:
			m.Outliers = append(m.Outliers, Exclusion{Asset: a, Reason: "return outlier"})
		case sigma[j] < sigmaLo || sigma[j] > sigmaHi:
			m.Outliers = append(m.Outliers, Exclusion{Asset: a, Reason: "volatility outlier"})
		default:
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return m
	}

	rows, _ := x.Dims()
	filtered := mat.NewDense(rows, len(keep), nil)
	for k, j := range keep {
		filtered.SetCol(k, mat.Col(nil, j, x))
		m.Assets = append(m.Assets, w.Assets[j])
		m.Mu = append(m.Mu, mu[j])
	}
	m.Cov = annualCovariance(filtered)
	return m
}

// annualReturns compounds each column over all rows and scales to a 365 day year.
func annualReturns(x *mat.Dense) []float64 {
	rows, cols := x.Dims()
	out := make([]float64, cols)
	growth := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			growth[i] = 1 + x.At(i, j)
		}
		out[j] = math.Pow(floats.Prod(growth), DaysPerYear/float64(rows)) - 1
	}
	return out
}

func annualCovariance(x *mat.Dense) *mat.SymDense {
	_, cols := x.Dims()
	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, x, nil)
	cov.ScaleSym(DaysPerYear, cov)
	return cov
}

func volatilities(cov *mat.SymDense) []float64 {
	n := cov.SymmetricDim()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
	}
	return out
}

// Sigma returns the per-asset annualized volatility.
func (m Moments) Sigma() []float64 {
	if m.Cov == nil {
		return nil
	}
	return volatilities(m.Cov)
}

// Len returns the number of assets.
func (m Moments) Len() int { return len(m.Mu) }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
