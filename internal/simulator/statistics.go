package simulator

import (
	"math"

	"github.com/samber/lo"
)

// Statistics summarizes the closed orders of a run.
type Statistics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // Percentage of profitable trades
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"` // Absolute value
	NetProfit     float64 `json:"net_profit"`
	ProfitFactor  float64 `json:"profit_factor"`
	FinalBalance  float64 `json:"final_balance"`
	FinalEquity   float64 `json:"final_equity"`
	ReturnPct     float64 `json:"return_pct"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"` // Absolute value
}

// Statistics computes aggregate trade statistics. With no closed orders every
// ratio is zero and only the balance fields are populated.
func (s *Simulator) Statistics() Statistics {
	stats := Statistics{
		FinalBalance: s.balance,
		FinalEquity:  s.equity,
	}
	if len(s.closed) == 0 {
		return stats
	}

	wins := lo.Filter(s.closed, func(o *Order, _ int) bool { return o.Profit > 0 })
	losses := lo.Filter(s.closed, func(o *Order, _ int) bool { return o.Profit < 0 })
	profit := func(o *Order) float64 { return o.Profit }

	stats.TotalTrades = len(s.closed)
	stats.WinningTrades = len(wins)
	stats.LosingTrades = len(losses)
	stats.WinRate = float64(len(wins)) / float64(len(s.closed)) * 100
	stats.GrossProfit = lo.SumBy(wins, profit)
	stats.GrossLoss = math.Abs(lo.SumBy(losses, profit))
	stats.NetProfit = s.balance - s.cfg.InitialBalance

	if stats.GrossLoss > 0 {
		stats.ProfitFactor = stats.GrossProfit / stats.GrossLoss
	}
	if s.cfg.InitialBalance != 0 {
		stats.ReturnPct = stats.NetProfit / s.cfg.InitialBalance * 100
	}
	if len(wins) > 0 {
		stats.AvgWin = stats.GrossProfit / float64(len(wins))
	}
	if len(losses) > 0 {
		stats.AvgLoss = stats.GrossLoss / float64(len(losses))
	}

	return stats
}
