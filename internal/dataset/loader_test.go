package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defiFrontier/internal/model"
	"defiFrontier/internal/subgraph"
)

type fakeReader struct {
	pools  []model.Pool
	pool   map[string][]model.PoolSnapshot
	tokens map[string][]model.TokenSnapshot
	reads  map[string]int
}

func (f *fakeReader) ListPoolsWithSnapshots(context.Context) ([]model.Pool, error) {
	return f.pools, nil
}

func (f *fakeReader) PoolSnapshots(_ context.Context, poolID string) ([]model.PoolSnapshot, error) {
	return f.pool[poolID], nil
}

func (f *fakeReader) TokenSnapshots(_ context.Context, tokenID string) ([]model.TokenSnapshot, error) {
	if f.reads == nil {
		f.reads = make(map[string]int)
	}
	f.reads[tokenID]++
	return f.tokens[tokenID], nil
}

type fakeWeights map[string][]float64

func (f fakeWeights) TokenWeights(_ context.Context, _ string, poolID string) ([]float64, error) {
	w, ok := f[poolID]
	if !ok {
		return nil, errors.New("unsupported")
	}
	return w, nil
}

func price(v float64) *float64 { return &v }

func testPool(id string, tokens ...string) model.Pool {
	p := model.Pool{ID: id, Name: "pool " + id, Protocol: "Curve"}
	for _, t := range tokens {
		p.Tokens = append(p.Tokens, model.Token{ID: t})
	}
	return p
}

func TestLoad(t *testing.T) {
	reader := &fakeReader{
		pools: []model.Pool{
			testPool("weighted", "0x1", "0x2"),
			testPool("equal", "0x1", "0x2"),
			testPool("single", "0x2"),
			testPool("unpriced", "0x9"),
		},
		pool: map[string][]model.PoolSnapshot{
			"weighted": {
				{Timestamp: 100, TotalValueLocked: 10, CumulativeReward: 1},
				{Timestamp: 100, TotalValueLocked: 99, CumulativeReward: 99},
				{Timestamp: 50, TotalValueLocked: 5, CumulativeReward: 0},
			},
			"equal":    {{Timestamp: 100, TotalValueLocked: 1}},
			"single":   {{Timestamp: 100, TotalValueLocked: 1}},
			"unpriced": {{Timestamp: 100, TotalValueLocked: 1}},
		},
		tokens: map[string][]model.TokenSnapshot{
			"0x1": {{Timestamp: 50, Price: price(4)}, {Timestamp: 100, Price: price(8)}},
			"0x2": {{Timestamp: 50, Price: nil}, {Timestamp: 100, Price: price(2)}},
		},
	}

	pools, err := NewLoader(reader, fakeWeights{"weighted": {3, 1}}, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)

	weighted := pools[0]
	assert.Equal(t, "weighted", weighted.ID)
	assert.Equal(t, "Curve", weighted.Protocol)
	require.Len(t, weighted.Price, 1)
	assert.InDelta(t, 0.75*8+0.25*2, weighted.Price[0].Value, 1e-12)
	require.Len(t, weighted.TVL, 2)
	assert.Equal(t, int64(50), weighted.TVL[0].Timestamp)
	assert.Equal(t, 10.0, weighted.TVL[1].Value)
	assert.Equal(t, 1.0, weighted.Reward[1].Value)

	equal := pools[1]
	assert.InDelta(t, 5.0, equal.Price[0].Value, 1e-12)

	single := pools[2]
	require.Len(t, single.Price, 2)
	assert.True(t, single.Price[0].Value != single.Price[0].Value, "missing price is NaN")
	assert.Equal(t, 2.0, single.Price[1].Value)

	assert.Equal(t, 1, reader.reads["0x1"])
	assert.Equal(t, 1, reader.reads["0x2"])
}

func TestSubgraphWeights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"liquidityPool":{"inputTokenWeights":["50","50"]}}}`))
	}))
	defer srv.Close()

	weights := NewSubgraphWeights(subgraph.NewClient(subgraph.ClientConfig{}, nil), subgraph.NewRegistry(srv.URL, nil))

	got, err := weights.TokenWeights(context.Background(), "Balancer v2", "0xpool")
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, got)

	_, err = weights.TokenWeights(context.Background(), "Aave v2", "0xmarket")
	assert.ErrorIs(t, err, subgraph.ErrUnsupportedQuery)

	_, err = weights.TokenWeights(context.Background(), "Nowhere", "0x0")
	assert.Error(t, err)
}
