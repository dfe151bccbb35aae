package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphQLServer(t *testing.T, handle func(query string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handle(req.Query)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSource(t *testing.T, url, schemaType string) *Source {
	t.Helper()
	client := NewClient(ClientConfig{MaxRetries: 0, RetryBackoff: time.Millisecond}, nil)
	src, err := client.Source(NewRegistry(url, nil), Subgraph{Protocol: "Test", SchemaType: schemaType, Endpoint: "test"})
	require.NoError(t, err)
	return src
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("", nil)
	assert.Len(t, r.Subgraphs(), 29)

	sg, ok := r.ByProtocol("Curve")
	require.True(t, ok)
	assert.Equal(t, TypeDEXAMM, sg.SchemaType)
	assert.Equal(t, DefaultBaseURL+"curve-finance-ethereum", r.URL(sg))

	filtered := NewRegistry("http://localhost:8000/subgraphs", []string{"Liquity", "Yearn v2"})
	assert.Len(t, filtered.Subgraphs(), 2)
	sg, _ = filtered.ByProtocol("Liquity")
	assert.Equal(t, "http://localhost:8000/subgraphs/liquity-ethereum", filtered.URL(sg))

	for _, sg := range r.Subgraphs() {
		_, err := SchemaFor(sg.SchemaType)
		assert.NoError(t, err, sg.Protocol)
	}
}

func TestSchemaFor(t *testing.T) {
	_, err := SchemaFor("Perpetual Futures")
	assert.True(t, errors.Is(err, ErrUnknownSchema))

	s, err := SchemaFor(TypeCDP)
	require.NoError(t, err)
	_, err = s.TokenWeightsQuery("0x1")
	assert.True(t, errors.Is(err, ErrUnsupportedQuery))
}

func TestPoolsPaginates(t *testing.T) {
	srv := graphQLServer(t, func(query string) string {
		switch {
		case strings.Contains(query, `id_gt: ""`):
			return `{"data":{"liquidityPools":[
				{"id":"0xa","name":"A","inputTokens":[{"id":"0x1","name":"One","symbol":"ONE"},{"id":"0x2","name":"Two","symbol":"TWO"}]},
				{"id":"0xb","name":"B","inputTokens":[{"id":"0x3","name":"Three","symbol":"THR"}]}]}}`
		case strings.Contains(query, `id_gt: "0xb"`):
			return `{"data":{"liquidityPools":[{"id":"0xc","name":"C","inputTokens":[]}]}}`
		default:
			return `{"data":{"liquidityPools":[]}}`
		}
	})

	pools, err := testSource(t, srv.URL, TypeDEXAMM).Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)
	assert.Equal(t, "0xc", pools[2].ID)
	assert.Equal(t, "Test", pools[0].Protocol)
	assert.Equal(t, []string{"0x1", "0x2"}, pools[0].TokenIDs())
}

func TestPoolsSingleToken(t *testing.T) {
	srv := graphQLServer(t, func(query string) string {
		if strings.Contains(query, `id_gt: ""`) {
			return `{"data":{"vaults":[{"id":"0xv","name":"Vault","inputToken":{"id":"0x1","name":"One","symbol":"ONE"}}]}}`
		}
		return `{"data":{"vaults":[]}}`
	})

	pools, err := testSource(t, srv.URL, TypeYieldAggregator).Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "ONE", pools[0].Tokens[0].Symbol)
}

func TestSnapshotsQueryAndInterpolation(t *testing.T) {
	var queries atomic.Int32
	srv := graphQLServer(t, func(query string) string {
		queries.Add(1)
		if !strings.Contains(query, "marketDailySnapshots") || !strings.Contains(query, `market: "0xm"`) {
			return `{"errors":[{"message":"unexpected query"}]}`
		}
		if !strings.Contains(query, "blockNumber_gte: 100") || !strings.Contains(query, "blockNumber_lte: 300") {
			return `{"errors":[{"message":"unexpected range"}]}`
		}
		if strings.Contains(query, `id_gt: ""`) {
			return `{"data":{"marketDailySnapshots":[
				{"id":"s1","blockNumber":"150","timestamp":"1500","totalValueLockedUSD":"10","cumulativeSupplySideRevenueUSD":"1"},
				{"id":"s2","blockNumber":"250","timestamp":"2500","totalValueLockedUSD":"30","cumulativeSupplySideRevenueUSD":"5.5"}]}}`
		}
		return `{"data":{"marketDailySnapshots":[]}}`
	})

	snaps, err := testSource(t, srv.URL, TypeLending).Snapshots(context.Background(), "0xm", []uint64{300, 100, 200})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int32(2), queries.Load())

	assert.Equal(t, "0xm_100", snaps[0].ID)
	assert.Equal(t, 10.0, snaps[0].TotalValueLocked)
	assert.Equal(t, int64(1500), snaps[0].Timestamp)

	assert.Equal(t, uint64(200), snaps[1].BlockNumber)
	assert.InDelta(t, 20.0, snaps[1].TotalValueLocked, 1e-12)
	assert.InDelta(t, 3.25, snaps[1].CumulativeReward, 1e-12)
	assert.Equal(t, int64(2000), snaps[1].Timestamp)

	assert.Equal(t, 30.0, snaps[2].TotalValueLocked)
}

func TestSnapshotsEmpty(t *testing.T) {
	srv := graphQLServer(t, func(string) string { return `{"data":{"vaultDailySnapshots":[]}}` })

	snaps, err := testSource(t, srv.URL, TypeYieldAggregator).Snapshots(context.Background(), "0xv", []uint64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestTokenWeights(t *testing.T) {
	srv := graphQLServer(t, func(query string) string {
		if strings.Contains(query, `liquidityPool(id: "0xp")`) {
			return `{"data":{"liquidityPool":{"inputTokenWeights":["80","20"]}}}`
		}
		return `{"data":{"liquidityPool":null}}`
	})
	src := testSource(t, srv.URL, TypeDEXAMM)

	weights, err := src.TokenWeights(context.Background(), "0xp")
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 20}, weights)

	weights, err = src.TokenWeights(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Empty(t, weights)
}

func TestQueryErrors(t *testing.T) {
	srv := graphQLServer(t, func(string) string {
		return `{"errors":[{"message":"indexing_error"}]}`
	})

	_, err := testSource(t, srv.URL, TypeDEXAMM).Pools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing_error")
}

func TestQueryRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	data, err := client.Query(context.Background(), srv.URL, "{ ok }")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, int32(2), calls.Load())
}
