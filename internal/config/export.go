package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ExportConfig holds settings of the token and price exporters.
type ExportConfig struct {
	RPCURL            string
	SubgraphURL       string
	Protocols         []string
	Oracle            string
	PGDSN             string
	Days              int
	TopPools          int
	PriceBatch        int
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	PollInterval      time.Duration
	Follow            bool
	RedisAddr         string
	MetricsAddr       string
	StateFile         string
	LogLevel          string
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := newViper(flags)
	if err != nil {
		return ExportConfig{}, err
	}

	v.SetDefault("days", 60)
	v.SetDefault("top-pools", 50)
	v.SetDefault("price-batch", 100)
	v.SetDefault("requests-per-second", 5.0)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("poll-interval", time.Minute)

	if err := readConfig(v, cfgFile); err != nil {
		return ExportConfig{}, err
	}

	return ExportConfig{
		RPCURL:            v.GetString("rpc"),
		SubgraphURL:       v.GetString("subgraph-url"),
		Protocols:         getStringSlice(v, "protocol"),
		Oracle:            v.GetString("oracle"),
		PGDSN:             pgDSN(v),
		Days:              v.GetInt("days"),
		TopPools:          v.GetInt("top-pools"),
		PriceBatch:        v.GetInt("price-batch"),
		RequestsPerSecond: v.GetFloat64("requests-per-second"),
		Timeout:           v.GetDuration("timeout"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PollInterval:      v.GetDuration("poll-interval"),
		Follow:            v.GetBool("follow"),
		RedisAddr:         v.GetString("redis-addr"),
		MetricsAddr:       v.GetString("metrics-addr"),
		StateFile:         v.GetString("state-file"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
