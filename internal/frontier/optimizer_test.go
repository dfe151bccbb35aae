package frontier

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testMoments(mu []float64, cov []float64) Moments {
	m := Moments{Mu: mu, Cov: mat.NewSymDense(len(mu), cov)}
	for range mu {
		m.Assets = append(m.Assets, Asset{})
	}
	return m
}

func assertFeasible(t *testing.T, w []float64) {
	t.Helper()
	assert.InDelta(t, 1.0, floats.Sum(w), 1e-6)
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

// assertOnTarget checks that every frontier point's weights carry its reported volatility.
func assertOnTarget(t *testing.T, m Moments, f Frontier) {
	t.Helper()
	for i, p := range f.Points {
		got := math.Sqrt(variance(m.Cov, p.Weights))
		assert.InDelta(t, got, p.Volatility, 1e-6, "point %d", i)
	}
}

func fourAssets() Moments {
	return testMoments(
		[]float64{0.08, 0.12, 0.20, 0.05},
		[]float64{
			0.04, 0.006, 0.01, 0.002,
			0.006, 0.09, 0.02, 0.001,
			0.01, 0.02, 0.16, 0.003,
			0.002, 0.001, 0.003, 0.01,
		},
	)
}

func TestMinVolatilityPicksRisklessAsset(t *testing.T) {
	w := windowFromReturns(
		[]float64{0.01, 0.02, -0.01},
		[]float64{0, 0, 0},
		[]float64{0.05, -0.04, 0.03},
	)
	m := Estimate(w)
	require.Equal(t, 3, m.Len())

	p := NewOptimizer(DefaultOptimizerConfig(), nil).MinVolatility(m)
	assertFeasible(t, p.Weights)
	assert.InDelta(t, 1.0, p.Weights[1], 1e-4)
	assert.InDelta(t, 0.0, p.Volatility, 1e-3)
}

func TestMinVolatilityUncorrelated(t *testing.T) {
	m := testMoments([]float64{0.1, 0.2}, []float64{0.01, 0, 0, 0.04})

	p := NewOptimizer(DefaultOptimizerConfig(), nil).MinVolatility(m)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, p.Weights, 1e-5)
}

func TestTangencyUncorrelated(t *testing.T) {
	m := testMoments([]float64{0.1, 0.2}, []float64{0.01, 0, 0, 0.04})

	p := NewOptimizer(DefaultOptimizerConfig(), nil).Tangency(m)
	// proportional to inverse covariance times excess return: (7, 4.25)
	assert.InDeltaSlice(t, []float64{7 / 11.25, 4.25 / 11.25}, p.Weights, 1e-3)
}

func TestSolversReturnFeasibleWeights(t *testing.T) {
	m := fourAssets()
	o := NewOptimizer(DefaultOptimizerConfig(), nil)

	assertFeasible(t, o.Tangency(m).Weights)
	assertFeasible(t, o.MinVolatility(m).Weights)
	assertFeasible(t, RiskParity(m).Weights)
	assertFeasible(t, Uniform(m).Weights)

	f, err := o.EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	require.NotEmpty(t, f.Points)
	for _, p := range f.Points {
		assertFeasible(t, p.Weights)
	}
}

func TestRiskParityEqualRiskContribution(t *testing.T) {
	m := fourAssets()
	p := RiskParity(m)
	sigma := m.Sigma()

	want := p.Weights[0] * sigma[0]
	for i := range sigma {
		assert.InDelta(t, want, p.Weights[i]*sigma[i], 1e-12)
	}
}

func TestRiskParityRisklessAsset(t *testing.T) {
	m := testMoments([]float64{0.1, 0.0}, []float64{0.01, 0, 0, 0})

	p := RiskParity(m)
	assert.Equal(t, []float64{0, 1}, p.Weights)
}

func TestEfficientFrontierMonotonic(t *testing.T) {
	m := fourAssets()
	cfg := DefaultOptimizerConfig()
	cfg.Samples = 40
	o := NewOptimizer(cfg, nil)

	f, err := o.EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	require.NotEmpty(t, f.Points)
	assert.LessOrEqual(t, len(f.Points), cfg.Samples)
	if !f.Truncated {
		assert.Len(t, f.Points, cfg.Samples)
	}
	assertOnTarget(t, m, f)
	for i := 1; i < len(f.Points); i++ {
		assert.GreaterOrEqual(t, f.Points[i].Return, f.Points[i-1].Return)
		assert.Greater(t, f.Points[i].Volatility, f.Points[i-1].Volatility)
	}

	seen := make(map[int]bool)
	for _, p := range f.Points {
		for _, j := range p.Members {
			assert.Greater(t, p.Weights[j], cfg.Threshold)
			seen[j] = true
		}
	}
	assert.Len(t, f.Members, len(seen))
}

func TestEfficientFrontierTwoAssets(t *testing.T) {
	m := testMoments([]float64{0.1, 0.2}, []float64{0.01, 0, 0, 0.04})

	f, err := NewOptimizer(DefaultOptimizerConfig(), nil).EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, f.Points, 100)
	assert.False(t, f.Truncated)

	assertOnTarget(t, m, f)

	first, last := f.Points[0], f.Points[len(f.Points)-1]
	assert.InDelta(t, 0.1, first.Volatility, 1e-6)
	assert.InDelta(t, 0.14, first.Return, 1e-5)
	assert.InDelta(t, 0.2, last.Volatility, 1e-6)
	assert.InDelta(t, 0.2, last.Return, 1e-5)
	assert.Equal(t, []int{0, 1}, f.Members)
}

func TestEfficientFrontierStopsPastTopReturnAsset(t *testing.T) {
	// the highest return asset sits between the other two in volatility
	m := testMoments(
		[]float64{0.05, 0.20, 0.10},
		[]float64{
			0.01, 0, 0,
			0, 0.04, 0,
			0, 0, 0.16,
		},
	)

	f, err := NewOptimizer(DefaultOptimizerConfig(), nil).EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	require.NotEmpty(t, f.Points)
	assert.True(t, f.Truncated)
	assert.Less(t, len(f.Points), 100)

	assertOnTarget(t, m, f)
	for i, p := range f.Points {
		assertFeasible(t, p.Weights)
		assert.LessOrEqual(t, p.Volatility, 0.2+1e-6, "point %d", i)
		assert.LessOrEqual(t, p.Return, 0.2+1e-6, "point %d", i)
	}
}

func TestEfficientFrontierDeterministic(t *testing.T) {
	m := fourAssets()

	serial := DefaultOptimizerConfig()
	serial.Samples = 20
	serial.Workers = 1
	parallel := serial
	parallel.Workers = 4

	a, err := NewOptimizer(serial, nil).EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	b, err := NewOptimizer(parallel, nil).EfficientFrontier(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEfficientFrontierCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOptimizer(DefaultOptimizerConfig(), nil).EfficientFrontier(ctx, fourAssets())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectSimplex(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, projectSimplex([]float64{1, 1, -1}), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0}, projectSimplex([]float64{3, 0}), 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.5}, projectSimplex([]float64{0.2, 0.3, 0.5}), 1e-12)
}
