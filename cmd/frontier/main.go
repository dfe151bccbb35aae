package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"defiFrontier/internal/config"
	"defiFrontier/internal/oracle"
	"defiFrontier/internal/storage/postgres"
	"defiFrontier/internal/subgraph"
)

func main() {
	root := &cobra.Command{
		Use:          "frontier",
		Short:        "DeFi pool exporter and efficient frontier report",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	initCmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database tables",
		RunE:  runInitDB,
	}
	initCmd.Flags().String("pg-dsn", "", "Postgres DSN (defaults to POSTGRES_* variables)")
	initCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(initCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Register subgraph pools whose tokens have on-chain prices",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runExporter(cmd, exporterTokens) },
	}
	addExportFlags(tokensCmd.Flags())
	root.AddCommand(tokensCmd)

	pricesCmd := &cobra.Command{
		Use:   "prices",
		Short: "Store daily pool snapshots and token prices",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runExporter(cmd, exporterPrices) },
	}
	addExportFlags(pricesCmd.Flags())
	pricesCmd.Flags().Int("days", 60, "number of daily blocks to sample")
	pricesCmd.Flags().Int("top-pools", 50, "price the tokens of this many pools by TVL")
	pricesCmd.Flags().Int("price-batch", 100, "tokens per oracle batch")
	root.AddCommand(pricesCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the efficient frontier, named portfolios and backtest",
		RunE:  runReport,
	}
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN (defaults to POSTGRES_* variables)")
	reportCmd.Flags().String("subgraph-url", subgraph.DefaultBaseURL, "subgraph base URL for token weights")
	reportCmd.Flags().Int("window-days", 90, "statistics window in days")
	reportCmd.Flags().Int("frontier-samples", 100, "target volatilities sampled on the frontier")
	reportCmd.Flags().Float64("frontier-threshold", 0.1, "weight above which an asset is on the frontier")
	reportCmd.Flags().Float64("risk-free-rate", 0.03, "risk-free rate of the tangency portfolio")
	reportCmd.Flags().Int("backtest-estimation", 90, "backtest estimation window in days")
	reportCmd.Flags().Int("backtest-evaluation", 30, "backtest evaluation window in days")
	reportCmd.Flags().Float64("min-weight", 1e-3, "smallest weight listed in portfolio tables")
	reportCmd.Flags().Int("workers", 0, "concurrent frontier solves (0 means number of CPUs)")
	reportCmd.Flags().String("out", "./data/frontier.json", "output report path")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addExportFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "Ethereum archive RPC URL")
	flags.String("pg-dsn", "", "Postgres DSN (defaults to POSTGRES_* variables)")
	flags.String("subgraph-url", subgraph.DefaultBaseURL, "subgraph base URL")
	flags.StringSlice("protocol", nil, "only export these protocols (comma-separated)")
	flags.String("oracle", oracle.DefaultAddress, "price oracle contract address")
	flags.Float64("requests-per-second", 5, "subgraph request rate limit")
	flags.Duration("timeout", 30*time.Second, "subgraph request timeout")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Bool("follow", false, "keep running on every new chain head")
	flags.Duration("poll-interval", time.Minute, "chain head poll interval when following")
	flags.String("redis-addr", "", "optional Redis address for the price cache")
	flags.String("metrics-addr", "", "optional address serving Prometheus metrics")
	flags.String("state-file", "", "optional local state file instead of the database")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runInitDB(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("schema ready", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
