package report

import (
	"time"

	"defiFrontier/internal/frontier"
)

// AssetRow describes one asset that survived the statistics stage.
type AssetRow struct {
	Name       string  `json:"name"`
	Protocol   string  `json:"protocol"`
	Address    string  `json:"address"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
	OnFrontier bool    `json:"onFrontier"`
}

// WeightRow is one holding of a named portfolio.
type WeightRow struct {
	Weight   float64 `json:"weight"`
	Name     string  `json:"name"`
	Protocol string  `json:"protocol"`
	Address  string  `json:"address"`
}

// PortfolioSummary is a named portfolio with its material holdings.
type PortfolioSummary struct {
	Return     float64     `json:"return"`
	Volatility float64     `json:"volatility"`
	Holdings   []WeightRow `json:"holdings,omitempty"`
}

// BacktestResult is the realized performance of one portfolio.
type BacktestResult struct {
	Return      float64   `json:"return"`
	MaxDrawdown float64   `json:"maxDrawdown"`
	Cumulative  []float64 `json:"cumulative"`
}

// Backtests holds the evaluation of each named portfolio over the same window.
type Backtests struct {
	EstimationStart time.Time      `json:"estimationStart"`
	EvaluationStart time.Time      `json:"evaluationStart"`
	EvaluationEnd   time.Time      `json:"evaluationEnd"`
	Uniform         BacktestResult `json:"uniform"`
	Tangency        BacktestResult `json:"tangency"`
	MinVolatility   BacktestResult `json:"minVolatility"`
	RiskParity      BacktestResult `json:"riskParity"`
}

// FrontierLine is one accepted point of the efficient frontier.
type FrontierLine struct {
	Volatility float64 `json:"volatility"`
	Return     float64 `json:"return"`
}

// Report is the output document of a frontier run.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	Assets            []AssetRow     `json:"assets"`
	Frontier          []FrontierLine `json:"frontier"`
	FrontierTruncated bool           `json:"frontierTruncated"`
	FrontierAssets    []AssetRow     `json:"frontierAssets"`

	Uniform       PortfolioSummary `json:"uniform"`
	Tangency      PortfolioSummary `json:"tangency"`
	MinVolatility PortfolioSummary `json:"minVolatility"`
	RiskParity    PortfolioSummary `json:"riskParity"`

	// Backtest is nil when the history is too short to evaluate.
	Backtest *Backtests `json:"backtest"`

	Excluded []frontier.Exclusion `json:"excluded"`
	Outliers []frontier.Exclusion `json:"outliers"`
}
