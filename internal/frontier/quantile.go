package frontier

import (
	"math"
	"sort"
)

// iqrWhisker is the Tukey fence multiplier.
const iqrWhisker = 1.5

// quantile returns the p-quantile of sorted values using linear interpolation
// between closest ranks. Sorted must be ascending and non-empty.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// iqrFence returns [Q1 - 1.5*IQR, Q3 + 1.5*IQR] for the finite entries of values.
// ok is false when there is no finite entry.
func iqrFence(values []float64) (lo, hi float64, ok bool) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0, 0, false
	}
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - iqrWhisker*iqr, q3 + iqrWhisker*iqr, true
}
