package report

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defiFrontier/internal/frontier"
	"defiFrontier/internal/storage"
)

const firstDay = 19000

// syntheticPool builds days of daily observations with an oscillating price
// and a steadily accruing reward.
func syntheticPool(id string, days int, freq, amp, dailyYield float64) frontier.PoolSeries {
	p := frontier.PoolSeries{Asset: frontier.Asset{ID: id, Name: "pool " + id, Protocol: "Curve"}}
	for d := 0; d < days; d++ {
		ts := int64(firstDay+d)*86400 + 3600
		p.Price = append(p.Price, frontier.Point{Timestamp: ts, Value: 1 + amp*math.Sin(freq*float64(d))})
		p.TVL = append(p.TVL, frontier.Point{Timestamp: ts, Value: 1000})
		p.Reward = append(p.Reward, frontier.Point{Timestamp: ts, Value: 1000 * dailyYield * float64(d)})
	}
	return p
}

func testPools(days int) []frontier.PoolSeries {
	stale := syntheticPool("stale", days-3, 0.5, 0.01, 0.0002)
	return []frontier.PoolSeries{
		syntheticPool("a", days, 0.3, 0.010, 0.0003),
		syntheticPool("b", days, 0.7, 0.020, 0.0005),
		syntheticPool("c", days, 1.1, 0.015, 0.0004),
		syntheticPool("d", days, 1.9, 0.005, 0.0002),
		syntheticPool("e", days, 0.9, 0.012, 0.0003),
		stale,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Optimizer.Samples = 20
	cfg.Optimizer.Workers = 2
	return cfg
}

func TestBuild(t *testing.T) {
	b := NewBuilder(testConfig(), nil)
	b.now = func() time.Time { return time.Unix(0, 0) }

	rep, err := b.Build(context.Background(), testPools(140))
	require.NoError(t, err)

	require.Len(t, rep.Excluded, 1)
	assert.Equal(t, "stale", rep.Excluded[0].Asset.ID)
	assert.Equal(t, 5, len(rep.Assets)+len(rep.Outliers))
	require.NotEmpty(t, rep.Assets)
	assert.Equal(t, 89*24*time.Hour, rep.WindowEnd.Sub(rep.WindowStart))

	require.NotEmpty(t, rep.Frontier)
	for i := 1; i < len(rep.Frontier); i++ {
		assert.GreaterOrEqual(t, rep.Frontier[i].Return, rep.Frontier[i-1].Return)
	}
	for _, row := range rep.FrontierAssets {
		assert.True(t, row.OnFrontier)
	}

	mean := 0.0
	for _, row := range rep.Assets {
		mean += row.Return
	}
	assert.InDelta(t, mean/float64(len(rep.Assets)), rep.Uniform.Return, 1e-12)
	assert.Empty(t, rep.Uniform.Holdings)

	for _, p := range []PortfolioSummary{rep.Tangency, rep.MinVolatility, rep.RiskParity} {
		require.NotEmpty(t, p.Holdings)
		for i, h := range p.Holdings {
			assert.Greater(t, h.Weight, 1e-3)
			if i > 0 {
				assert.LessOrEqual(t, h.Weight, p.Holdings[i-1].Weight)
			}
		}
	}

	require.NotNil(t, rep.Backtest)
	assert.Equal(t, 30*24*time.Hour, rep.Backtest.EvaluationEnd.Sub(rep.Backtest.EvaluationStart))
	assert.Equal(t, 90*24*time.Hour, rep.Backtest.EvaluationStart.Sub(rep.Backtest.EstimationStart))
	for _, r := range []BacktestResult{rep.Backtest.Uniform, rep.Backtest.Tangency, rep.Backtest.MinVolatility, rep.Backtest.RiskParity} {
		require.Len(t, r.Cumulative, 30)
		assert.InDelta(t, r.Cumulative[29]-1, r.Return, 1e-12)
		assert.LessOrEqual(t, r.MaxDrawdown, 0.0)
	}
}

func TestBuildDeterministic(t *testing.T) {
	pools := testPools(140)
	first, err := NewBuilder(testConfig(), nil).Build(context.Background(), pools)
	require.NoError(t, err)
	second, err := NewBuilder(testConfig(), nil).Build(context.Background(), pools)
	require.NoError(t, err)

	assert.Equal(t, first.Frontier, second.Frontier)
	assert.Equal(t, first.Tangency, second.Tangency)
	assert.Equal(t, first.Backtest.Tangency, second.Backtest.Tangency)
}

func TestBuildShortHistory(t *testing.T) {
	rep, err := NewBuilder(testConfig(), nil).Build(context.Background(), testPools(20))
	require.NoError(t, err)
	assert.Nil(t, rep.Backtest)
	assert.NotEmpty(t, rep.Assets)
}

func TestBuildEmpty(t *testing.T) {
	rep, err := NewBuilder(testConfig(), nil).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Assets)
	assert.Empty(t, rep.Frontier)
	assert.Nil(t, rep.Backtest)
}

func TestReportWritesJSON(t *testing.T) {
	rep, err := NewBuilder(testConfig(), nil).Build(context.Background(), testPools(140))
	require.NoError(t, err)

	out := storage.NewJSONFile(filepath.Join(t.TempDir(), "report", "frontier.json"))
	require.NoError(t, out.Write(rep))

	data, err := os.ReadFile(out.Path())
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"assets", "frontier", "frontierAssets", "tangency", "minVolatility", "riskParity", "backtest", "excluded", "outliers"} {
		assert.Contains(t, decoded, key)
	}
}
