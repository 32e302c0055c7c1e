package analyzer

// Metrics is the full performance record of one run.
type Metrics struct {
	Basic    BasicMetrics    `json:"basic"`
	Drawdown DrawdownMetrics `json:"drawdown"`
	Risk     RiskMetrics     `json:"risk"`
	Trades   TradeMetrics    `json:"trades"`
	Time     TimeMetrics     `json:"time"`
}

// BasicMetrics are balance and return figures.
type BasicMetrics struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
}

// DrawdownMetrics describe declines from the running equity peak.
type DrawdownMetrics struct {
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	MaxDurationHours   float64 `json:"max_drawdown_duration_hours"`
	CurrentDrawdown    float64 `json:"current_drawdown"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
}

// RiskMetrics are annualized risk-adjusted ratios.
type RiskMetrics struct {
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	CalmarRatio   float64 `json:"calmar_ratio"`
	Volatility    float64 `json:"volatility"`
	VolatilityPct float64 `json:"volatility_pct"`
}

// TradeMetrics summarize the trade log.
type TradeMetrics struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	GrossProfit      float64 `json:"gross_profit"`
	GrossLoss        float64 `json:"gross_loss"` // Absolute value
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"` // Negative or zero
	AvgTrade         float64 `json:"avg_trade"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`
	AvgDurationHours float64 `json:"avg_trade_duration_hours"`
	Expectancy       float64 `json:"expectancy"`
}

// TimeMetrics group trades by calendar date of close.
type TimeMetrics struct {
	TotalDays      int     `json:"total_days"`
	TradesPerDay   float64 `json:"trades_per_day"`
	BestDayProfit  float64 `json:"best_day_profit"`
	WorstDayProfit float64 `json:"worst_day_profit"`
	ProfitableDays int     `json:"profitable_days"`
	LosingDays     int     `json:"losing_days"`
}
