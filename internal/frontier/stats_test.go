package frontier

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// windowFromReturns builds a window whose total returns equal the given columns.
func windowFromReturns(columns ...[]float64) *Window {
	days := len(columns[0])
	w := &Window{}
	for i := 0; i <= days; i++ {
		w.Index = append(w.Index, time.Unix(int64(i)*secondsPerDay, 0).UTC())
	}
	for j, col := range columns {
		w.Assets = append(w.Assets, Asset{ID: fmt.Sprintf("asset-%d", j)})
		w.HODL = append(w.HODL, col)
		w.APY = append(w.APY, make([]float64, days))
	}
	return w
}

func TestEstimateAnnualizes(t *testing.T) {
	w := windowFromReturns(
		[]float64{0.01, 0.02, -0.01},
		[]float64{0, 0, 0},
		[]float64{0.05, -0.04, 0.03},
	)

	m := Estimate(w)
	require.Equal(t, 3, m.Len())
	assert.Empty(t, m.Outliers)

	assert.InDelta(t, math.Pow(1.01*1.02*0.99, 365.0/3)-1, m.Mu[0], 1e-9)
	assert.Equal(t, 0.0, m.Mu[1])
	assert.InDelta(t, math.Pow(1.05*0.96*1.03, 365.0/3)-1, m.Mu[2], 1e-9)

	c13 := stat.Covariance([]float64{0.01, 0.02, -0.01}, []float64{0.05, -0.04, 0.03}, nil) * 365
	assert.InDelta(t, c13, m.Cov.At(0, 2), 1e-12)
	assert.Equal(t, 0.0, m.Cov.At(1, 1))
}

func TestEstimateDropsReturnOutlier(t *testing.T) {
	var columns [][]float64
	for i := 1; i <= 9; i++ {
		a := 0.001 * float64(i)
		columns = append(columns, []float64{a, -a, a, -a})
	}
	// mid-range volatility, extreme return
	columns = append(columns, []float64{0.053, 0.047, 0.053, 0.047})
	w := windowFromReturns(columns...)

	m := Estimate(w)
	require.Len(t, m.Outliers, 1)
	assert.Equal(t, "asset-9", m.Outliers[0].Asset.ID)
	require.Equal(t, 9, m.Len())
	for i, a := range m.Assets {
		assert.Equal(t, fmt.Sprintf("asset-%d", i), a.ID)
	}

	n, _ := m.Cov.Dims()
	assert.Equal(t, 9, n)

	filtered := mat.NewDense(4, 9, nil)
	for j := 0; j < 9; j++ {
		filtered.SetCol(j, columns[j])
	}
	var want mat.SymDense
	stat.CovarianceMatrix(&want, filtered, nil)
	want.ScaleSym(365, &want)
	assert.True(t, mat.EqualApprox(&want, m.Cov, 1e-12))
}

func TestEstimateDropsVolatilityOutlier(t *testing.T) {
	var columns [][]float64
	for i := 1; i <= 9; i++ {
		a := 0.001 * float64(i)
		columns = append(columns, []float64{a, -a, a, -a})
	}
	// flat compounded return, extreme swings
	columns = append(columns, []float64{0.25, -0.2, 0.25, -0.2})
	w := windowFromReturns(columns...)

	m := Estimate(w)
	require.Len(t, m.Outliers, 1)
	assert.Equal(t, "asset-9", m.Outliers[0].Asset.ID)
	assert.Equal(t, "volatility outlier", m.Outliers[0].Reason)
	require.Equal(t, 9, m.Len())
	assert.Equal(t, "asset-8", m.Assets[8].ID)
}

func TestEstimateInsufficientHistory(t *testing.T) {
	w := windowFromReturns([]float64{0.01}, []float64{0.02})

	m := Estimate(w)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Cov)
	assert.Len(t, m.Outliers, 2)
}

func TestMomentsSigma(t *testing.T) {
	w := windowFromReturns([]float64{0.01, -0.01, 0.01}, []float64{0.02, -0.02, 0.02})

	m := Estimate(w)
	sigma := m.Sigma()
	require.Len(t, sigma, 2)
	assert.InDelta(t, 2*sigma[0], sigma[1], 1e-12)
}
