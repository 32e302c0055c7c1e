package backtest

import (
	"time"

	"github.com/newthinker/boxsim/internal/analyzer"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/simulator"
)

// Result holds the complete backtest output
type Result struct {
	RunID       string                  `json:"run_id"`
	Symbol      string                  `json:"symbol"`
	Config      simulator.Config        `json:"config"`
	Statistics  simulator.Statistics    `json:"ea_statistics"`
	Metrics     analyzer.Metrics        `json:"performance_metrics"`
	EquityCurve []simulator.EquityPoint `json:"equity_curve"`
	Trades      []simulator.TradeRecord `json:"trades_log"`
	Predictions []predictor.Prediction  `json:"predictions"`
	StartDate   time.Time               `json:"start_date"`
	EndDate     time.Time               `json:"end_date"`
	BarsTotal   int                     `json:"bars_total"`
	BarsUsed    int                     `json:"bars_used"`
	StartedAt   time.Time               `json:"started_at"`
	Duration    time.Duration           `json:"duration"`
}

// Summary is the one-line view of a result used in comparisons.
type Summary struct {
	Name           string  `json:"name"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
	NetProfit      float64 `json:"net_profit"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	ProfitFactor   float64 `json:"profit_factor"`
}

// Summarize condenses r under the given name.
func (r *Result) Summarize(name string) Summary {
	return Summary{
		Name:           name,
		TotalTrades:    r.Statistics.TotalTrades,
		WinRate:        r.Statistics.WinRate,
		NetProfit:      r.Statistics.NetProfit,
		TotalReturnPct: r.Metrics.Basic.TotalReturnPct,
		MaxDrawdownPct: r.Metrics.Drawdown.MaxDrawdownPct,
		SharpeRatio:    r.Metrics.Risk.SharpeRatio,
		ProfitFactor:   r.Statistics.ProfitFactor,
	}
}
