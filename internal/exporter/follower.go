package exporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HeadSource reports the latest chain head.
type HeadSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Exporter processes the chain state at a head block.
type Exporter interface {
	Run(ctx context.Context, head uint64) error
}

// FollowConfig holds the follower settings.
type FollowConfig struct {
	Name         string
	PollInterval time.Duration
	// Follow keeps polling for new heads; otherwise Run returns after one pass.
	Follow bool
}

// Follower runs an exporter whenever the chain head advances.
type Follower struct {
	cfg      FollowConfig
	heads    HeadSource
	exporter Exporter
	state    StateStore
	metrics  *Metrics
	logger   *zap.Logger
}

func NewFollower(cfg FollowConfig, heads HeadSource, exporter Exporter, state StateStore, metrics *Metrics, logger *zap.Logger) *Follower {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Follower{cfg: cfg, heads: heads, exporter: exporter, state: state, metrics: metrics, logger: logger}
}

// Run executes the exporter loop until the context ends. Without Follow it
// processes the current head once and returns the run error.
func (f *Follower) Run(ctx context.Context) error {
	if f.heads == nil || f.exporter == nil {
		return fmt.Errorf("follower is not configured")
	}

	for {
		err := f.step(ctx)
		if !f.cfg.Follow {
			return err
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Error("exporter run failed", zap.String("exporter", f.cfg.Name), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

func (f *Follower) step(ctx context.Context) error {
	head, err := f.heads.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	if f.cfg.Follow && f.state != nil {
		last, ok, err := f.state.Load(ctx)
		if err != nil {
			return err
		}
		if ok && head <= last {
			f.logger.Debug("head not advanced", zap.String("exporter", f.cfg.Name), zap.Uint64("head", head), zap.Uint64("last_processed", last))
			return nil
		}
	}

	f.logger.Info("exporter run start", zap.String("exporter", f.cfg.Name), zap.Uint64("head", head))
	start := time.Now()
	if err := f.exporter.Run(ctx, head); err != nil {
		f.metrics.Runs.WithLabelValues(f.cfg.Name, "error").Inc()
		return err
	}
	f.metrics.Runs.WithLabelValues(f.cfg.Name, "ok").Inc()

	if f.state != nil {
		if err := f.state.Save(ctx, head); err != nil {
			return err
		}
	}
	f.logger.Info("exporter run complete",
		zap.String("exporter", f.cfg.Name),
		zap.Uint64("head", head),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
