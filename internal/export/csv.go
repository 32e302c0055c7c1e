package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/optimize"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/simulator"
)

const timeLayout = "2006-01-02 15:04:05"

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteEquityCurve writes one row per equity sample.
func WriteEquityCurve(w io.Writer, curve []simulator.EquityPoint) error {
	rows := make([][]string, len(curve))
	for i, p := range curve {
		rows[i] = []string{
			p.Time.Format(timeLayout), formatF(p.Equity), formatF(p.Balance), strconv.Itoa(p.OpenOrders),
		}
	}
	return writeAll(w, []string{"datetime", "equity", "balance", "open_orders"}, rows)
}

// WriteTrades writes one row per closed order.
func WriteTrades(w io.Writer, trades []simulator.TradeRecord) error {
	rows := make([][]string, len(trades))
	for i, t := range trades {
		rows[i] = []string{
			strconv.Itoa(t.Ticket), string(t.Side),
			t.OpenTime.Format(timeLayout), formatF(t.OpenPrice),
			t.CloseTime.Format(timeLayout), formatF(t.ClosePrice),
			formatF(t.LotSize), formatF(t.Profit), string(t.Reason), t.Comment,
		}
	}
	return writeAll(w, []string{
		"ticket", "type", "open_time", "open_price", "close_time", "close_price",
		"lot_size", "profit", "reason", "comment",
	}, rows)
}

// WritePredictions writes the predictor output fed to each bar.
func WritePredictions(w io.Writer, preds []predictor.Prediction) error {
	rows := make([][]string, len(preds))
	for i, p := range preds {
		rows[i] = []string{p.Time.Format(timeLayout), formatF(p.MarketRange), formatF(p.Imbalance), p.Method}
	}
	return writeAll(w, []string{"datetime", "market_range", "imbalance", "method"}, rows)
}

// WriteComparison writes one row per compared run.
func WriteComparison(w io.Writer, summaries []backtest.Summary) error {
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			s.Name, strconv.Itoa(s.TotalTrades), formatF(s.WinRate), formatF(s.NetProfit),
			formatF(s.TotalReturnPct), formatF(s.MaxDrawdownPct), formatF(s.SharpeRatio), formatF(s.ProfitFactor),
		}
	}
	return writeAll(w, []string{
		"name", "total_trades", "win_rate", "net_profit",
		"total_return_pct", "max_drawdown_pct", "sharpe_ratio", "profit_factor",
	}, rows)
}

// WriteTrials writes a ranked sweep, one column per swept parameter.
// Failed trials carry their error in the last column.
func WriteTrials(w io.Writer, objective string, trials []optimize.Trial) error {
	var names []string
	if len(trials) > 0 {
		for _, p := range trials[0].Params {
			names = append(names, p.Name)
		}
	}

	header := append([]string{"rank", "index"}, names...)
	header = append(header, objective, "total_trades", "net_profit", "error")

	rows := make([][]string, len(trials))
	for i, t := range trials {
		row := []string{strconv.Itoa(i + 1), strconv.Itoa(t.Index)}
		for _, p := range t.Params {
			row = append(row, formatF(p.Value))
		}
		if t.Err != nil {
			row = append(row, "", "", "", t.Err.Error())
		} else {
			row = append(row, formatF(t.Score),
				strconv.Itoa(t.Result.Statistics.TotalTrades), formatF(t.Result.Statistics.NetProfit), "")
		}
		rows[i] = row
	}
	return writeAll(w, header, rows)
}
