package optimize

import (
	"fmt"
	"strings"

	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/core"
)

// Objective names accepted by ObjectiveByName.
const (
	ObjectiveTotalReturnPct = "total_return_pct"
	ObjectiveSharpeRatio    = "sharpe_ratio"
	ObjectiveSortinoRatio   = "sortino_ratio"
	ObjectiveCalmarRatio    = "calmar_ratio"
	ObjectiveProfitFactor   = "profit_factor"
	ObjectiveWinRate        = "win_rate"
	ObjectiveNetProfit      = "net_profit"
	ObjectiveMaxDrawdownPct = "max_drawdown_pct"
)

// Objective scores a backtest result.
type Objective struct {
	Name string
	// Minimize is set for objectives where lower is better.
	Minimize bool
	Value    func(*backtest.Result) float64
}

// Better reports whether score a beats score b.
func (o Objective) Better(a, b float64) bool {
	if o.Minimize {
		return a < b
	}
	return a > b
}

var objectives = []Objective{
	{Name: ObjectiveTotalReturnPct, Value: func(r *backtest.Result) float64 { return r.Metrics.Basic.TotalReturnPct }},
	{Name: ObjectiveSharpeRatio, Value: func(r *backtest.Result) float64 { return r.Metrics.Risk.SharpeRatio }},
	{Name: ObjectiveSortinoRatio, Value: func(r *backtest.Result) float64 { return r.Metrics.Risk.SortinoRatio }},
	{Name: ObjectiveCalmarRatio, Value: func(r *backtest.Result) float64 { return r.Metrics.Risk.CalmarRatio }},
	{Name: ObjectiveProfitFactor, Value: func(r *backtest.Result) float64 { return r.Metrics.Trades.ProfitFactor }},
	{Name: ObjectiveWinRate, Value: func(r *backtest.Result) float64 { return r.Metrics.Trades.WinRate }},
	{Name: ObjectiveNetProfit, Value: func(r *backtest.Result) float64 { return r.Statistics.NetProfit }},
	{Name: ObjectiveMaxDrawdownPct, Minimize: true, Value: func(r *backtest.Result) float64 { return r.Metrics.Drawdown.MaxDrawdownPct }},
}

// ObjectiveNames lists the known objectives.
func ObjectiveNames() []string {
	names := make([]string, len(objectives))
	for i, o := range objectives {
		names[i] = o.Name
	}
	return names
}

// ObjectiveByName looks up an objective. An empty name means total_return_pct.
func ObjectiveByName(name string) (Objective, error) {
	if name == "" {
		name = ObjectiveTotalReturnPct
	}
	for _, o := range objectives {
		if o.Name == name {
			return o, nil
		}
	}
	return Objective{}, core.WrapError(core.ErrUnknownObjective,
		fmt.Errorf("%q (known: %s)", name, strings.Join(ObjectiveNames(), ", ")))
}
