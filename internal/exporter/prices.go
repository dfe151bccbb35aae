package exporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"defiFrontier/internal/chain"
	"defiFrontier/internal/model"
	"defiFrontier/internal/storage"
)

// DailyBlockSource resolves the blocks closest to UTC midnight.
type DailyBlockSource interface {
	DailyBlocks(ctx context.Context, head uint64, days int) ([]chain.Block, error)
}

// PriceConfig holds the price exporter settings.
type PriceConfig struct {
	Days       int
	TopPools   int
	PriceBatch int
}

// PriceExporter stores daily pool snapshots and token prices.
type PriceExporter struct {
	cfg     PriceConfig
	blocks  DailyBlockSource
	sources *Sources
	oracle  PriceOracle
	store   storage.SnapshotWriter
	metrics *Metrics
	logger  *zap.Logger
}

func NewPriceExporter(cfg PriceConfig, blocks DailyBlockSource, sources *Sources, oracle PriceOracle, store storage.SnapshotWriter, metrics *Metrics, logger *zap.Logger) *PriceExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg.Days <= 0 {
		cfg.Days = 60
	}
	if cfg.TopPools <= 0 {
		cfg.TopPools = 50
	}
	if cfg.PriceBatch <= 0 {
		cfg.PriceBatch = 100
	}
	return &PriceExporter{
		cfg:     cfg,
		blocks:  blocks,
		sources: sources,
		oracle:  oracle,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Run samples every stored pool at the daily blocks ending with head's day,
// then prices the tokens of the pools with the highest TVL on the last day.
func (e *PriceExporter) Run(ctx context.Context, head uint64) error {
	if e.blocks == nil || e.sources == nil || e.oracle == nil || e.store == nil {
		return fmt.Errorf("price exporter is not configured")
	}

	blocks, err := e.blocks.DailyBlocks(ctx, head, e.cfg.Days)
	if err != nil {
		return fmt.Errorf("daily blocks: %w", err)
	}
	if len(blocks) == 0 {
		e.logger.Info("no daily blocks", zap.Uint64("head", head))
		return nil
	}
	numbers := make([]uint64, len(blocks))
	for i, b := range blocks {
		numbers[i] = b.Number
	}

	if err := e.exportPoolSnapshots(ctx, numbers); err != nil {
		return err
	}
	return e.exportTokenPrices(ctx, blocks)
}

func (e *PriceExporter) exportPoolSnapshots(ctx context.Context, blocks []uint64) error {
	pools, err := e.store.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	e.logger.Info("fetched pools from store", zap.Int("pools", len(pools)))

	for _, pool := range pools {
		src, ok := e.sources.Get(pool.Protocol)
		if !ok {
			e.logger.Debug("no source for protocol", zap.String("pool", pool.ID), zap.String("protocol", pool.Protocol))
			continue
		}
		snapshots, err := src.Snapshots(ctx, pool.ID, blocks)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("fetch snapshots failed", zap.String("pool", pool.ID), zap.Error(err))
			continue
		}
		if len(snapshots) == 0 || snapshots[0].CumulativeReward == snapshots[len(snapshots)-1].CumulativeReward {
			continue
		}

		// The token exporter may have removed the pool meanwhile.
		exists, err := e.store.PoolExists(ctx, pool.ID)
		if err != nil {
			return fmt.Errorf("check pool %s: %w", pool.ID, err)
		}
		if !exists {
			continue
		}
		if err := e.store.InsertPoolSnapshots(ctx, snapshots); err != nil {
			return fmt.Errorf("insert snapshots %s: %w", pool.ID, err)
		}
		e.metrics.SnapshotsStored.WithLabelValues("pool").Add(float64(len(snapshots)))
	}
	return nil
}

func (e *PriceExporter) exportTokenPrices(ctx context.Context, blocks []chain.Block) error {
	last := blocks[len(blocks)-1].Number
	tokens, err := e.store.TopPoolTokens(ctx, last, e.cfg.TopPools)
	if err != nil {
		return fmt.Errorf("top pool tokens: %w", err)
	}
	e.logger.Info("fetched tokens of top pools", zap.Int("tokens", len(tokens)), zap.Uint64("block", last))
	if len(tokens) == 0 {
		return nil
	}

	for _, block := range blocks {
		snapshots, err := e.blockPrices(ctx, tokens, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("price block failed", zap.Uint64("block", block.Number), zap.Error(err))
			continue
		}
		if err := e.store.InsertTokenSnapshots(ctx, snapshots); err != nil {
			return fmt.Errorf("insert token snapshots at %d: %w", block.Number, err)
		}
		e.metrics.SnapshotsStored.WithLabelValues("token").Add(float64(len(snapshots)))
	}
	return nil
}

// blockPrices prices the tokens without a stored snapshot at block.
func (e *PriceExporter) blockPrices(ctx context.Context, tokens []string, block chain.Block) ([]model.TokenSnapshot, error) {
	ids := make([]string, len(tokens))
	for i, token := range tokens {
		ids[i] = model.SnapshotID(token, block.Number)
	}
	existing, err := e.store.ExistingSnapshotIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("existing snapshots: %w", err)
	}
	var missing []string
	for i, token := range tokens {
		if _, ok := existing[ids[i]]; !ok {
			missing = append(missing, token)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	ranges, err := SplitRange(0, len(missing)-1, e.cfg.PriceBatch)
	if err != nil {
		return nil, err
	}
	out := make([]model.TokenSnapshot, 0, len(missing))
	for _, r := range ranges {
		batch := missing[r.From : r.To+1]
		prices, err := e.oracle.Prices(ctx, batch, block.Number)
		if err != nil {
			return nil, err
		}
		for i, token := range batch {
			if prices[i] == nil {
				e.metrics.PriceLookupsFail.Inc()
			}
			out = append(out, model.TokenSnapshot{
				ID:          model.SnapshotID(token, block.Number),
				TokenID:     token,
				BlockNumber: block.Number,
				Timestamp:   int64(block.Timestamp),
				Price:       prices[i],
			})
		}
	}
	return out, nil
}
