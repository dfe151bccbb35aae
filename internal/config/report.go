package config

import (
	"runtime"
	"time"

	"github.com/spf13/pflag"
)

// ReportConfig holds settings of the frontier report.
type ReportConfig struct {
	PGDSN             string
	SubgraphURL       string
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration

	WindowDays        int
	FrontierSamples   int
	FrontierThreshold float64
	RiskFreeRate      float64
	EstimationDays    int
	EvaluationDays    int
	MinWeight         float64
	Workers           int

	Out      string
	LogLevel string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(flags)
	if err != nil {
		return ReportConfig{}, err
	}

	v.SetDefault("requests-per-second", 5.0)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("window-days", 90)
	v.SetDefault("frontier-samples", 100)
	v.SetDefault("frontier-threshold", 0.1)
	v.SetDefault("risk-free-rate", 0.03)
	v.SetDefault("backtest-estimation", 90)
	v.SetDefault("backtest-evaluation", 30)
	v.SetDefault("min-weight", 1e-3)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("out", "./data/frontier.json")

	if err := readConfig(v, cfgFile); err != nil {
		return ReportConfig{}, err
	}

	return ReportConfig{
		PGDSN:             pgDSN(v),
		SubgraphURL:       v.GetString("subgraph-url"),
		RequestsPerSecond: v.GetFloat64("requests-per-second"),
		Timeout:           v.GetDuration("timeout"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		WindowDays:        v.GetInt("window-days"),
		FrontierSamples:   v.GetInt("frontier-samples"),
		FrontierThreshold: v.GetFloat64("frontier-threshold"),
		RiskFreeRate:      v.GetFloat64("risk-free-rate"),
		EstimationDays:    v.GetInt("backtest-estimation"),
		EvaluationDays:    v.GetInt("backtest-evaluation"),
		MinWeight:         v.GetFloat64("min-weight"),
		Workers:           v.GetInt("workers"),
		Out:               v.GetString("out"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
