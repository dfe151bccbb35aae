package frontier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Performance is the realized path of a fixed allocation over an evaluation window.
type Performance struct {
	Cumulative  []float64 `json:"cumulative"`
	TotalReturn float64   `json:"totalReturn"`
	MaxDrawdown float64   `json:"maxDrawdown"`
}

// Backtest applies weights to daily returns (days x assets) and compounds the
// weighted daily return. Drawdown is measured against the running peak of the
// cumulative value.
func Backtest(weights []float64, returns *mat.Dense) (Performance, error) {
	if returns == nil {
		return Performance{Cumulative: []float64{}}, nil
	}
	rows, cols := returns.Dims()
	if cols != len(weights) {
		return Performance{}, fmt.Errorf("backtest: %d weights for %d assets", len(weights), cols)
	}

	perf := Performance{Cumulative: make([]float64, rows)}
	value := 1.0
	peak := 0.0
	for i := 0; i < rows; i++ {
		daily := 0.0
		for j, w := range weights {
			daily += w * returns.At(i, j)
		}
		value *= 1 + daily
		perf.Cumulative[i] = value
		if i == 0 || value > peak {
			peak = value
		}
		if dd := value/peak - 1; dd < perf.MaxDrawdown {
			perf.MaxDrawdown = dd
		}
	}
	if rows > 0 {
		perf.TotalReturn = value - 1
	}
	return perf, nil
}
