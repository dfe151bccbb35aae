package exporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"defiFrontier/internal/model"
	"defiFrontier/internal/storage"
)

// PriceOracle quotes token prices at a block. Unquoted tokens get nil.
type PriceOracle interface {
	Prices(ctx context.Context, tokens []string, block uint64) ([]*float64, error)
}

// TokenResolver fills missing token names and symbols.
type TokenResolver interface {
	Complete(ctx context.Context, tokens []model.Token) []model.Token
}

// TokenExporter keeps the pool registry limited to pools whose tokens all
// have an on-chain price.
type TokenExporter struct {
	sources *Sources
	oracle  PriceOracle
	tokens  TokenResolver
	store   storage.PoolWriter
	metrics *Metrics
	logger  *zap.Logger
}

// NewTokenExporter builds a TokenExporter. tokens may be nil.
func NewTokenExporter(sources *Sources, oracle PriceOracle, tokens TokenResolver, store storage.PoolWriter, metrics *Metrics, logger *zap.Logger) *TokenExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &TokenExporter{sources: sources, oracle: oracle, tokens: tokens, store: store, metrics: metrics, logger: logger}
}

// Run refreshes the registry at the head block. Pools with an unpriced token
// are removed together with their tokens; new fully priced pools are stored.
func (e *TokenExporter) Run(ctx context.Context, head uint64) error {
	if e.sources == nil || e.oracle == nil || e.store == nil {
		return fmt.Errorf("token exporter is not configured")
	}

	for _, protocol := range e.sources.Protocols() {
		src, _ := e.sources.Get(protocol)
		pools, err := src.Pools(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("list pools failed", zap.String("protocol", protocol), zap.Error(err))
			continue
		}
		e.logger.Info("fetched pools", zap.String("protocol", protocol), zap.Int("pools", len(pools)))
		e.metrics.PoolsListed.WithLabelValues(protocol).Add(float64(len(pools)))

		var stored, deleted int
		for _, pool := range pools {
			if len(pool.Tokens) == 0 {
				e.logger.Debug("pool has no tokens", zap.String("pool", pool.ID))
				continue
			}
			pool.Protocol = protocol

			prices, err := e.oracle.Prices(ctx, pool.TokenIDs(), head)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Debug("price pool tokens failed", zap.String("pool", pool.ID), zap.Error(err))
				continue
			}

			if !allPriced(prices) {
				if err := e.store.DeletePoolWithTokens(ctx, pool); err != nil {
					return fmt.Errorf("delete pool %s: %w", pool.ID, err)
				}
				deleted++
				e.metrics.PoolsDeleted.WithLabelValues(protocol).Inc()
				continue
			}

			exists, err := e.store.PoolExists(ctx, pool.ID)
			if err != nil {
				return fmt.Errorf("check pool %s: %w", pool.ID, err)
			}
			if exists {
				continue
			}
			if e.tokens != nil {
				pool.Tokens = e.tokens.Complete(ctx, pool.Tokens)
			}
			if err := e.store.InsertPool(ctx, pool); err != nil {
				return fmt.Errorf("insert pool %s: %w", pool.ID, err)
			}
			stored++
			e.metrics.PoolsStored.WithLabelValues(protocol).Inc()
		}

		e.logger.Info("pools updated",
			zap.String("protocol", protocol),
			zap.Int("stored", stored),
			zap.Int("deleted", deleted),
		)
	}
	return nil
}

func allPriced(prices []*float64) bool {
	for _, p := range prices {
		if p == nil {
			return false
		}
	}
	return true
}
