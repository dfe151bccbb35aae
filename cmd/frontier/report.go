package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defiFrontier/internal/config"
	"defiFrontier/internal/dataset"
	"defiFrontier/internal/frontier"
	"defiFrontier/internal/report"
	"defiFrontier/internal/storage"
	"defiFrontier/internal/storage/postgres"
	"defiFrontier/internal/subgraph"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	client := subgraph.NewClient(subgraph.ClientConfig{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, logger)
	weights := dataset.NewSubgraphWeights(client, subgraph.NewRegistry(cfg.SubgraphURL, nil))

	pools, err := dataset.NewLoader(store, weights, logger).Load(ctx)
	if err != nil {
		return err
	}

	optimizer := frontier.DefaultOptimizerConfig()
	optimizer.Samples = cfg.FrontierSamples
	optimizer.Threshold = cfg.FrontierThreshold
	optimizer.RiskFreeRate = cfg.RiskFreeRate
	if cfg.Workers > 0 {
		optimizer.Workers = cfg.Workers
	}

	builder := report.NewBuilder(report.Config{
		WindowDays:     cfg.WindowDays,
		EstimationDays: cfg.EstimationDays,
		EvaluationDays: cfg.EvaluationDays,
		MinWeight:      cfg.MinWeight,
		Optimizer:      optimizer,
	}, logger)

	logger.Info("report start",
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("pools", len(pools)),
		zap.Int("window_days", cfg.WindowDays),
		zap.Int("frontier_samples", cfg.FrontierSamples),
	)

	rep, err := builder.Build(ctx, pools)
	if err != nil {
		return err
	}

	out := storage.NewJSONFile(cfg.Out)
	if err := out.Write(rep); err != nil {
		return err
	}
	report.LogSummary(logger, rep)
	logger.Info("report written", zap.String("out", out.Path()))
	return nil
}
