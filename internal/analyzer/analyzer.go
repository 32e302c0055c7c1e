// Package analyzer derives performance metrics from a simulator run.
package analyzer

import (
	"math"
	"sort"

	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/simulator"
	"github.com/samber/lo"
)

// PeriodsPerYear is the sampling frequency assumed when annualizing:
// hourly bars over 252 trading days.
const PeriodsPerYear = 252 * 24

// Analyzer computes Metrics. The zero value analyzes against a zero initial
// balance; use New for the usual defaults.
type Analyzer struct {
	InitialBalance float64
	// RiskFreeRate is annual, e.g. 0.04 for 4%.
	RiskFreeRate float64
}

// New creates an analyzer.
func New(initialBalance, riskFreeRate float64) Analyzer {
	return Analyzer{InitialBalance: initialBalance, RiskFreeRate: riskFreeRate}
}

// Analyze computes every metric group. It never fails: empty or degenerate
// input yields zero-valued metrics, and no field is ever NaN or Inf.
// The inputs are not modified.
func (a Analyzer) Analyze(curve []simulator.EquityPoint, trades []simulator.TradeRecord) Metrics {
	m := Metrics{
		Basic:    a.basic(curve),
		Drawdown: drawdown(curve),
		Trades:   tradeMetrics(trades),
		Time:     timeMetrics(trades),
	}
	m.Risk = a.risk(curve, m.Drawdown.MaxDrawdownPct)
	return m
}

func (a Analyzer) basic(curve []simulator.EquityPoint) BasicMetrics {
	b := BasicMetrics{
		InitialBalance: a.InitialBalance,
		FinalBalance:   a.InitialBalance,
		FinalEquity:    a.InitialBalance,
	}
	if len(curve) == 0 {
		return b
	}

	last := curve[len(curve)-1]
	b.FinalBalance = last.Balance
	b.FinalEquity = last.Equity
	b.TotalReturn = last.Balance - a.InitialBalance
	b.TotalReturnPct = safeDiv(b.TotalReturn, a.InitialBalance) * 100
	return b
}

func drawdown(curve []simulator.EquityPoint) DrawdownMetrics {
	var d DrawdownMetrics
	if len(curve) == 0 {
		return d
	}

	peak := curve[0].Equity
	spanStart := -1
	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		d.MaxDrawdown = math.Max(d.MaxDrawdown, dd)
		if peak > 0 {
			d.MaxDrawdownPct = math.Max(d.MaxDrawdownPct, dd/peak*100)
		}

		below := p.Equity < peak
		switch {
		case below && spanStart < 0:
			spanStart = i
		case !below && spanStart >= 0:
			d.MaxDurationHours = math.Max(d.MaxDurationHours, hoursBetween(curve[spanStart], p))
			spanStart = -1
		}

		if i == len(curve)-1 {
			d.CurrentDrawdown = dd
			if peak > 0 {
				d.CurrentDrawdownPct = dd / peak * 100
			}
		}
	}
	// A drawdown still open at the end is measured to the last sample.
	if spanStart >= 0 {
		d.MaxDurationHours = math.Max(d.MaxDurationHours, hoursBetween(curve[spanStart], curve[len(curve)-1]))
	}
	return d
}

func hoursBetween(from, to simulator.EquityPoint) float64 {
	return to.Time.Sub(from.Time).Hours()
}

func (a Analyzer) risk(curve []simulator.EquityPoint, maxDDPct float64) RiskMetrics {
	var r RiskMetrics
	if len(curve) < 2 {
		return r
	}

	returns := simpleReturns(curve)
	if len(returns) == 0 {
		return r
	}

	annualizer := math.Sqrt(PeriodsPerYear)
	std := stdDev(returns)
	r.Volatility = std * annualizer
	r.VolatilityPct = r.Volatility * 100

	rf := a.RiskFreeRate / PeriodsPerYear
	excess := mean(returns) - rf
	if std > 0 {
		r.SharpeRatio = excess / std * annualizer
	}

	downside := lo.Filter(returns, func(v float64, _ int) bool { return v < 0 })
	if dstd := stdDev(downside); dstd > 0 {
		r.SortinoRatio = excess / dstd * annualizer
	}

	first, last := curve[0].Equity, curve[len(curve)-1].Equity
	curveReturnPct := safeDiv(last-first, first) * 100
	r.CalmarRatio = safeDiv(curveReturnPct, maxDDPct)

	r.Volatility = finite(r.Volatility)
	r.VolatilityPct = finite(r.VolatilityPct)
	r.SharpeRatio = finite(r.SharpeRatio)
	r.SortinoRatio = finite(r.SortinoRatio)
	r.CalmarRatio = finite(r.CalmarRatio)
	return r
}

// simpleReturns returns the percentage change between consecutive samples.
// Steps from a zero equity are skipped.
func simpleReturns(curve []simulator.EquityPoint) []float64 {
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

func tradeMetrics(trades []simulator.TradeRecord) TradeMetrics {
	var t TradeMetrics
	if len(trades) == 0 {
		return t
	}

	profit := func(tr simulator.TradeRecord) float64 { return tr.Profit }
	wins := lo.Filter(trades, func(tr simulator.TradeRecord, _ int) bool { return tr.IsWin() })
	losses := lo.Filter(trades, func(tr simulator.TradeRecord, _ int) bool { return tr.IsLoss() })

	t.TotalTrades = len(trades)
	t.WinningTrades = len(wins)
	t.LosingTrades = len(losses)
	t.WinRate = float64(len(wins)) / float64(len(trades)) * 100

	t.GrossProfit = lo.SumBy(wins, profit)
	t.GrossLoss = math.Abs(lo.SumBy(losses, profit))
	t.ProfitFactor = safeDiv(t.GrossProfit, t.GrossLoss)

	if len(wins) > 0 {
		t.AvgWin = t.GrossProfit / float64(len(wins))
		t.LargestWin = lo.MaxBy(wins, func(a, b simulator.TradeRecord) bool { return a.Profit > b.Profit }).Profit
	}
	if len(losses) > 0 {
		t.AvgLoss = lo.SumBy(losses, profit) / float64(len(losses))
		t.LargestLoss = lo.MinBy(losses, func(a, b simulator.TradeRecord) bool { return a.Profit < b.Profit }).Profit
	}
	t.AvgTrade = lo.SumBy(trades, profit) / float64(len(trades))
	t.AvgDurationHours = lo.SumBy(trades, func(tr simulator.TradeRecord) float64 {
		return tr.Duration().Hours()
	}) / float64(len(trades))

	winFrac := t.WinRate / 100
	t.Expectancy = winFrac*t.AvgWin + (1-winFrac)*t.AvgLoss
	return t
}

func timeMetrics(trades []simulator.TradeRecord) TimeMetrics {
	var tm TimeMetrics
	if len(trades) == 0 {
		return tm
	}

	daily := make(map[core.Date]float64)
	for _, tr := range trades {
		daily[core.DateOf(tr.CloseTime)] += tr.Profit
	}

	profits := lo.Values(daily)
	sort.Float64s(profits)

	tm.TotalDays = len(daily)
	tm.TradesPerDay = float64(len(trades)) / float64(len(daily))
	tm.WorstDayProfit = profits[0]
	tm.BestDayProfit = profits[len(profits)-1]
	tm.ProfitableDays = lo.CountBy(profits, func(p float64) bool { return p > 0 })
	tm.LosingDays = lo.CountBy(profits, func(p float64) bool { return p < 0 })
	return tm
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// stdDev is the sample standard deviation; fewer than two values give 0.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
