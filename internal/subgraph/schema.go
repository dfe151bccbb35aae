package subgraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"defiFrontier/internal/model"
)

var (
	// ErrUnknownSchema is returned for schema types without a query shape.
	ErrUnknownSchema = errors.New("unknown schema type")
	// ErrUnsupportedQuery is returned when a schema has no such entity.
	ErrUnsupportedQuery = errors.New("query not supported by schema")
)

const pageSize = 1000

// Schema shapes queries and decodes responses for one protocol family.
type Schema interface {
	PoolsQuery(lastID string) string
	DecodePools(data json.RawMessage) ([]model.Pool, error)
	SnapshotsQuery(poolID string, fromBlock, toBlock uint64, lastID string) string
	DecodeSnapshots(data json.RawMessage) ([]Snapshot, error)
	TokenWeightsQuery(poolID string) (string, error)
	DecodeTokenWeights(data json.RawMessage) ([]float64, error)
}

// SchemaFor returns the schema of a Messari schema type.
func SchemaFor(schemaType string) (Schema, error) {
	switch schemaType {
	case TypeDEXAMM:
		return dexAMM{}, nil
	case TypeLending, TypeCDP:
		return lending{}, nil
	case TypeYieldAggregator:
		return yieldAggregator{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", schemaType, ErrUnknownSchema)
	}
}

// Snapshot is a daily snapshot as served by a subgraph.
type Snapshot struct {
	ID               string
	BlockNumber      uint64
	Timestamp        int64
	TotalValueLocked float64
	CumulativeReward float64
}

type dexAMM struct{}

func (dexAMM) PoolsQuery(lastID string) string {
	return poolsQuery("liquidityPools", "inputTokens", lastID)
}

func (dexAMM) DecodePools(data json.RawMessage) ([]model.Pool, error) {
	var resp struct {
		Pools []struct {
			ID     string        `json:"id"`
			Name   string        `json:"name"`
			Tokens []model.Token `json:"inputTokens"`
		} `json:"liquidityPools"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode liquidity pools: %w", err)
	}
	out := make([]model.Pool, 0, len(resp.Pools))
	for _, p := range resp.Pools {
		out = append(out, model.Pool{ID: p.ID, Name: p.Name, Tokens: p.Tokens})
	}
	return out, nil
}

func (dexAMM) SnapshotsQuery(poolID string, fromBlock, toBlock uint64, lastID string) string {
	return snapshotsQuery("liquidityPoolDailySnapshots", "pool", poolID, fromBlock, toBlock, lastID)
}

func (dexAMM) DecodeSnapshots(data json.RawMessage) ([]Snapshot, error) {
	return decodeSnapshots(data, "liquidityPoolDailySnapshots")
}

func (dexAMM) TokenWeightsQuery(poolID string) (string, error) {
	return fmt.Sprintf(`{ liquidityPool(id: %s) { inputTokenWeights } }`, strconv.Quote(poolID)), nil
}

func (dexAMM) DecodeTokenWeights(data json.RawMessage) ([]float64, error) {
	var resp struct {
		Pool *struct {
			Weights []json.Number `json:"inputTokenWeights"`
		} `json:"liquidityPool"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode token weights: %w", err)
	}
	if resp.Pool == nil {
		return nil, nil
	}
	out := make([]float64, 0, len(resp.Pool.Weights))
	for _, w := range resp.Pool.Weights {
		v, err := w.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse token weight %q: %w", w, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// lending covers lending markets and CDP markets.
type lending struct{}

func (lending) PoolsQuery(lastID string) string {
	return poolsQuery("markets", "inputToken", lastID)
}

func (lending) DecodePools(data json.RawMessage) ([]model.Pool, error) {
	return decodeSingleTokenPools(data, "markets")
}

func (lending) SnapshotsQuery(poolID string, fromBlock, toBlock uint64, lastID string) string {
	return snapshotsQuery("marketDailySnapshots", "market", poolID, fromBlock, toBlock, lastID)
}

func (lending) DecodeSnapshots(data json.RawMessage) ([]Snapshot, error) {
	return decodeSnapshots(data, "marketDailySnapshots")
}

func (lending) TokenWeightsQuery(string) (string, error) { return "", ErrUnsupportedQuery }

func (lending) DecodeTokenWeights(json.RawMessage) ([]float64, error) {
	return nil, ErrUnsupportedQuery
}

type yieldAggregator struct{}

func (yieldAggregator) PoolsQuery(lastID string) string {
	return poolsQuery("vaults", "inputToken", lastID)
}

func (yieldAggregator) DecodePools(data json.RawMessage) ([]model.Pool, error) {
	return decodeSingleTokenPools(data, "vaults")
}

func (yieldAggregator) SnapshotsQuery(poolID string, fromBlock, toBlock uint64, lastID string) string {
	return snapshotsQuery("vaultDailySnapshots", "vault", poolID, fromBlock, toBlock, lastID)
}

func (yieldAggregator) DecodeSnapshots(data json.RawMessage) ([]Snapshot, error) {
	return decodeSnapshots(data, "vaultDailySnapshots")
}

func (yieldAggregator) TokenWeightsQuery(string) (string, error) { return "", ErrUnsupportedQuery }

func (yieldAggregator) DecodeTokenWeights(json.RawMessage) ([]float64, error) {
	return nil, ErrUnsupportedQuery
}

func poolsQuery(entity, tokens, lastID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{ %s(first: %d, orderBy: id, orderDirection: asc, where: {id_gt: %s}) ", entity, pageSize, strconv.Quote(lastID))
	fmt.Fprintf(&b, "{ id name %s { id name symbol } } }", tokens)
	return b.String()
}

func snapshotsQuery(entity, poolField, poolID string, fromBlock, toBlock uint64, lastID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{ %s(first: %d, orderBy: id, orderDirection: asc, where: {", entity, pageSize)
	fmt.Fprintf(&b, "id_gt: %s, %s: %s, blockNumber_gte: %d, blockNumber_lte: %d}) ", strconv.Quote(lastID), poolField, strconv.Quote(poolID), fromBlock, toBlock)
	b.WriteString("{ id blockNumber timestamp totalValueLockedUSD cumulativeSupplySideRevenueUSD } }")
	return b.String()
}

func decodeSingleTokenPools(data json.RawMessage, entity string) ([]model.Pool, error) {
	var resp map[string][]struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Token *model.Token `json:"inputToken"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entity, err)
	}
	items := resp[entity]
	out := make([]model.Pool, 0, len(items))
	for _, p := range items {
		pool := model.Pool{ID: p.ID, Name: p.Name}
		if p.Token != nil {
			pool.Tokens = []model.Token{*p.Token}
		}
		out = append(out, pool)
	}
	return out, nil
}

type snapshotRecord struct {
	ID          string      `json:"id"`
	BlockNumber json.Number `json:"blockNumber"`
	Timestamp   json.Number `json:"timestamp"`
	TVL         json.Number `json:"totalValueLockedUSD"`
	Revenue     json.Number `json:"cumulativeSupplySideRevenueUSD"`
}

func decodeSnapshots(data json.RawMessage, entity string) ([]Snapshot, error) {
	var resp map[string][]snapshotRecord
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entity, err)
	}
	items := resp[entity]
	out := make([]Snapshot, 0, len(items))
	for _, rec := range items {
		snap, err := rec.parse()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", rec.ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r snapshotRecord) parse() (Snapshot, error) {
	block, err := strconv.ParseUint(r.BlockNumber.String(), 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse block number: %w", err)
	}
	ts, err := r.Timestamp.Int64()
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse timestamp: %w", err)
	}
	tvl, err := r.TVL.Float64()
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse tvl: %w", err)
	}
	revenue, err := r.Revenue.Float64()
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse revenue: %w", err)
	}
	return Snapshot{
		ID:               r.ID,
		BlockNumber:      block,
		Timestamp:        ts,
		TotalValueLocked: tvl,
		CumulativeReward: revenue,
	}, nil
}
