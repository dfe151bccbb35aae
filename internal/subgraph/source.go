package subgraph

import (
	"context"
	"fmt"
	"sort"

	"defiFrontier/internal/model"
)

// Source reads pools and snapshots from one deployment.
type Source struct {
	Subgraph
	url    string
	schema Schema
	client *Client
}

// Source binds a deployment to the client.
func (c *Client) Source(r *Registry, sg Subgraph) (*Source, error) {
	schema, err := SchemaFor(sg.SchemaType)
	if err != nil {
		return nil, fmt.Errorf("subgraph %s: %w", sg.Protocol, err)
	}
	return &Source{Subgraph: sg, url: r.URL(sg), schema: schema, client: c}, nil
}

// Pools returns every pool of the deployment with its input tokens.
func (s *Source) Pools(ctx context.Context) ([]model.Pool, error) {
	var out []model.Pool
	lastID := ""
	for {
		data, err := s.client.Query(ctx, s.url, s.schema.PoolsQuery(lastID))
		if err != nil {
			return nil, fmt.Errorf("query pools: %w", err)
		}
		page, err := s.schema.DecodePools(data)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return out, nil
		}
		for i := range page {
			page[i].Protocol = s.Protocol
		}
		out = append(out, page...)
		lastID = page[len(page)-1].ID
	}
}

// Snapshots returns the pool state at each requested block, interpolated
// linearly in block number from the daily snapshots between the first and
// last block. It returns nothing when the subgraph has no snapshot in range.
func (s *Source) Snapshots(ctx context.Context, poolID string, blocks []uint64) ([]model.PoolSnapshot, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	sorted := append([]uint64(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var raw []Snapshot
	lastID := ""
	for {
		query := s.schema.SnapshotsQuery(poolID, sorted[0], sorted[len(sorted)-1], lastID)
		data, err := s.client.Query(ctx, s.url, query)
		if err != nil {
			return nil, fmt.Errorf("query snapshots: %w", err)
		}
		page, err := s.schema.DecodeSnapshots(data)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		raw = append(raw, page...)
		lastID = page[len(page)-1].ID
	}

	return Interpolate(poolID, raw, sorted), nil
}

// TokenWeights returns the pool's input token weights. Schemas without
// weights return ErrUnsupportedQuery.
func (s *Source) TokenWeights(ctx context.Context, poolID string) ([]float64, error) {
	query, err := s.schema.TokenWeightsQuery(poolID)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Query(ctx, s.url, query)
	if err != nil {
		return nil, fmt.Errorf("query token weights: %w", err)
	}
	return s.schema.DecodeTokenWeights(data)
}

// Interpolate evaluates snapshots at the given ascending blocks. Values are
// linear in block number between snapshots and flat beyond the first and last
// one. Snapshots sharing a block keep the last one served.
func Interpolate(poolID string, snapshots []Snapshot, blocks []uint64) []model.PoolSnapshot {
	if len(snapshots) == 0 {
		return nil
	}

	byBlock := make(map[uint64]Snapshot, len(snapshots))
	for _, snap := range snapshots {
		byBlock[snap.BlockNumber] = snap
	}
	known := make([]Snapshot, 0, len(byBlock))
	for _, snap := range byBlock {
		known = append(known, snap)
	}
	sort.Slice(known, func(i, j int) bool { return known[i].BlockNumber < known[j].BlockNumber })

	out := make([]model.PoolSnapshot, 0, len(blocks))
	for _, block := range blocks {
		i := sort.Search(len(known), func(k int) bool { return known[k].BlockNumber >= block })
		var ts, tvl, reward float64
		switch {
		case i == len(known):
			last := known[len(known)-1]
			ts, tvl, reward = float64(last.Timestamp), last.TotalValueLocked, last.CumulativeReward
		case known[i].BlockNumber == block || i == 0:
			ts, tvl, reward = float64(known[i].Timestamp), known[i].TotalValueLocked, known[i].CumulativeReward
		default:
			lo, hi := known[i-1], known[i]
			frac := float64(block-lo.BlockNumber) / float64(hi.BlockNumber-lo.BlockNumber)
			ts = lerp(float64(lo.Timestamp), float64(hi.Timestamp), frac)
			tvl = lerp(lo.TotalValueLocked, hi.TotalValueLocked, frac)
			reward = lerp(lo.CumulativeReward, hi.CumulativeReward, frac)
		}
		out = append(out, model.PoolSnapshot{
			ID:               model.SnapshotID(poolID, block),
			PoolID:           poolID,
			BlockNumber:      block,
			Timestamp:        int64(ts),
			TotalValueLocked: tvl,
			CumulativeReward: reward,
		})
	}
	return out
}

func lerp(a, b, frac float64) float64 {
	return a + frac*(b-a)
}
