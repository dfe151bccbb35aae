package frontier

import (
	"math"
	"testing"
)

func TestQuantileLinear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	cases := map[float64]float64{0: 1, 0.25: 1.75, 0.5: 2.5, 0.75: 3.25, 1: 4}
	for p, want := range cases {
		if got := quantile(sorted, p); math.Abs(got-want) > 1e-12 {
			t.Fatalf("quantile(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestIQRFenceIgnoresNonFinite(t *testing.T) {
	lo, hi, ok := iqrFence([]float64{4, 1, math.NaN(), 3, 2, math.Inf(1)})
	if !ok {
		t.Fatalf("expected fence")
	}
	if math.Abs(lo-(1.75-1.5*1.5)) > 1e-12 || math.Abs(hi-(3.25+1.5*1.5)) > 1e-12 {
		t.Fatalf("unexpected fence [%v, %v]", lo, hi)
	}

	if _, _, ok := iqrFence([]float64{math.NaN()}); ok {
		t.Fatalf("expected no fence without finite values")
	}
}
