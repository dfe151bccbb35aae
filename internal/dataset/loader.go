package dataset

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"defiFrontier/internal/frontier"
	"defiFrontier/internal/model"
	"defiFrontier/internal/storage"
)

// Loader builds the raw pool series of the statistics pipeline from the store.
type Loader struct {
	store   storage.Reader
	weights WeightSource
	logger  *zap.Logger
}

func NewLoader(store storage.Reader, weights WeightSource, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, weights: weights, logger: logger}
}

// Load returns one PoolSeries per stored pool with snapshots. Pools without
// any token price rows or pool snapshots are skipped.
func (l *Loader) Load(ctx context.Context) ([]frontier.PoolSeries, error) {
	pools, err := l.store.ListPoolsWithSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	tokens := make(map[string]frontier.Series)
	out := make([]frontier.PoolSeries, 0, len(pools))
	for _, pool := range pools {
		series, ok, err := l.loadPool(ctx, pool, tokens)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, series)
		}
	}
	l.logger.Info("loaded pool series", zap.Int("pools", len(out)), zap.Int("stored", len(pools)))
	return out, nil
}

func (l *Loader) loadPool(ctx context.Context, pool model.Pool, cache map[string]frontier.Series) (frontier.PoolSeries, bool, error) {
	prices := make([]frontier.Series, 0, len(pool.Tokens))
	rows := 0
	for _, token := range pool.Tokens {
		series, ok := cache[token.ID]
		if !ok {
			snaps, err := l.store.TokenSnapshots(ctx, token.ID)
			if err != nil {
				return frontier.PoolSeries{}, false, fmt.Errorf("token snapshots %s: %w", token.ID, err)
			}
			series = tokenSeries(snaps)
			cache[token.ID] = series
		}
		rows += len(series)
		prices = append(prices, series)
	}
	if rows == 0 {
		l.logger.Debug("pool has no prices", zap.String("pool", pool.ID))
		return frontier.PoolSeries{}, false, nil
	}

	var weights []float64
	if len(prices) > 1 && l.weights != nil {
		w, err := l.weights.TokenWeights(ctx, pool.Protocol, pool.ID)
		if err != nil {
			if ctx.Err() != nil {
				return frontier.PoolSeries{}, false, ctx.Err()
			}
			l.logger.Debug("token weights unavailable", zap.String("pool", pool.ID), zap.Error(err))
		}
		weights = w
	}

	snaps, err := l.store.PoolSnapshots(ctx, pool.ID)
	if err != nil {
		return frontier.PoolSeries{}, false, fmt.Errorf("pool snapshots %s: %w", pool.ID, err)
	}
	if len(snaps) == 0 {
		return frontier.PoolSeries{}, false, nil
	}
	tvl := make(frontier.Series, len(snaps))
	reward := make(frontier.Series, len(snaps))
	for i, s := range snaps {
		tvl[i] = frontier.Point{Timestamp: s.Timestamp, Value: s.TotalValueLocked}
		reward[i] = frontier.Point{Timestamp: s.Timestamp, Value: s.CumulativeReward}
	}

	return frontier.PoolSeries{
		Asset:  frontier.Asset{ID: pool.ID, Name: pool.Name, Protocol: pool.Protocol},
		Price:  frontier.CompositePrice(prices, weights),
		TVL:    tvl.Dedup(),
		Reward: reward.Dedup(),
	}, true, nil
}

func tokenSeries(snaps []model.TokenSnapshot) frontier.Series {
	out := make(frontier.Series, len(snaps))
	for i, s := range snaps {
		v := math.NaN()
		if s.Price != nil {
			v = *s.Price
		}
		out[i] = frontier.Point{Timestamp: s.Timestamp, Value: v}
	}
	return out
}
