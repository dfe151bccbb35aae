package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defiFrontier/internal/chain"
	"defiFrontier/internal/config"
	"defiFrontier/internal/exporter"
	"defiFrontier/internal/oracle"
	"defiFrontier/internal/storage/postgres"
	"defiFrontier/internal/subgraph"
)

const (
	exporterTokens = "tokens"
	exporterPrices = "prices"
)

func runExporter(cmd *cobra.Command, kind string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var cache oracle.Cache = oracle.NewMemoryCache()
	if cfg.RedisAddr != "" {
		redisCache := oracle.NewRedisCache(cfg.RedisAddr)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using memory cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cache = redisCache
		}
	}
	prices, err := oracle.New(chainClient, cfg.Oracle, cache, logger)
	if err != nil {
		return err
	}

	client := subgraph.NewClient(subgraph.ClientConfig{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, logger)
	sources, err := exporter.SubgraphSources(client, subgraph.NewRegistry(cfg.SubgraphURL, cfg.Protocols))
	if err != nil {
		return err
	}

	metrics := exporter.NewMetrics()
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer stopMetrics()
	}

	var exp exporter.Exporter
	switch kind {
	case exporterTokens:
		exp = exporter.NewTokenExporter(sources, prices, oracle.NewMetadata(chainClient, logger), store, metrics, logger)
	case exporterPrices:
		exp = exporter.NewPriceExporter(exporter.PriceConfig{
			Days:       cfg.Days,
			TopPools:   cfg.TopPools,
			PriceBatch: cfg.PriceBatch,
		}, chainClient, sources, prices, store, metrics, logger)
	default:
		return fmt.Errorf("unknown exporter %q", kind)
	}

	var state exporter.StateStore
	if cfg.StateFile != "" {
		state = &exporter.FileStateStore{Path: cfg.StateFile}
	} else {
		state = &exporter.DBStateStore{Store: store, Name: kind}
	}

	logger.Info("exporter start",
		zap.String("exporter", kind),
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("subgraph_url", cfg.SubgraphURL),
		zap.Strings("protocols", sources.Protocols()),
		zap.Bool("follow", cfg.Follow),
	)

	follower := exporter.NewFollower(exporter.FollowConfig{
		Name:         kind,
		PollInterval: cfg.PollInterval,
		Follow:       cfg.Follow,
	}, chainClient, exp, state, metrics, logger)

	err = follower.Run(ctx)
	if cfg.Follow && errors.Is(err, context.Canceled) {
		logger.Info("exporter stopped", zap.String("exporter", kind))
		return nil
	}
	return err
}

func serveMetrics(addr string, metrics *exporter.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
