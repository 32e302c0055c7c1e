package analyzer

import (
	"fmt"
	"io"
	"strings"
)

type reportWriter struct {
	w   io.Writer
	err error
}

func (r *reportWriter) line(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *reportWriter) section(title string) {
	r.line("")
	r.line("%s", title)
}

func (r *reportWriter) money(label string, v float64) {
	r.line("%-22s$%.2f", label+":", v)
}

func (r *reportWriter) pct(label string, v float64) {
	r.line("%-22s%.2f%%", label+":", v)
}

func (r *reportWriter) num(label, format string, v any) {
	r.line("%-22s"+format, label+":", v)
}

// WriteReport renders m as a plain-text performance report.
func WriteReport(w io.Writer, m Metrics) error {
	rule := strings.Repeat("=", 60)
	r := &reportWriter{w: w}

	r.line("%s", rule)
	r.line("BACKTEST PERFORMANCE REPORT")
	r.line("%s", rule)

	r.section("OVERALL PERFORMANCE")
	r.money("Initial Balance", m.Basic.InitialBalance)
	r.money("Final Balance", m.Basic.FinalBalance)
	r.money("Final Equity", m.Basic.FinalEquity)
	r.money("Total Return", m.Basic.TotalReturn)
	r.pct("Total Return %", m.Basic.TotalReturnPct)

	r.section("TRADE STATISTICS")
	r.num("Total Trades", "%d", m.Trades.TotalTrades)
	r.num("Winning Trades", "%d", m.Trades.WinningTrades)
	r.num("Losing Trades", "%d", m.Trades.LosingTrades)
	r.pct("Win Rate", m.Trades.WinRate)
	r.num("Profit Factor", "%.2f", m.Trades.ProfitFactor)

	r.section("PROFIT/LOSS ANALYSIS")
	r.money("Gross Profit", m.Trades.GrossProfit)
	r.money("Gross Loss", m.Trades.GrossLoss)
	r.money("Average Win", m.Trades.AvgWin)
	r.money("Average Loss", m.Trades.AvgLoss)
	r.money("Largest Win", m.Trades.LargestWin)
	r.money("Largest Loss", m.Trades.LargestLoss)
	r.money("Expectancy", m.Trades.Expectancy)

	r.section("DRAWDOWN ANALYSIS")
	r.money("Max Drawdown", m.Drawdown.MaxDrawdown)
	r.pct("Max Drawdown %", m.Drawdown.MaxDrawdownPct)
	r.num("Max DD Duration", "%.1f hours", m.Drawdown.MaxDurationHours)
	r.money("Current Drawdown", m.Drawdown.CurrentDrawdown)
	r.pct("Current Drawdown %", m.Drawdown.CurrentDrawdownPct)

	r.section("RISK METRICS")
	r.num("Sharpe Ratio", "%.2f", m.Risk.SharpeRatio)
	r.num("Sortino Ratio", "%.2f", m.Risk.SortinoRatio)
	r.num("Calmar Ratio", "%.2f", m.Risk.CalmarRatio)
	r.pct("Volatility", m.Risk.VolatilityPct)

	r.section("TIME ANALYSIS")
	r.num("Total Days", "%d", m.Time.TotalDays)
	r.num("Profitable Days", "%d", m.Time.ProfitableDays)
	r.num("Losing Days", "%d", m.Time.LosingDays)
	r.num("Trades per Day", "%.1f", m.Time.TradesPerDay)
	r.num("Avg Trade Duration", "%.1f hours", m.Trades.AvgDurationHours)
	r.money("Best Day Profit", m.Time.BestDayProfit)
	r.money("Worst Day Profit", m.Time.WorstDayProfit)

	r.line("")
	r.line("%s", rule)
	return r.err
}
