package simulator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/boxsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Symbol:                "XAUUSD",
		InitialBalance:        10000,
		DefaultLotSize:        0.01,
		CommissionPerLot:      7,
		MaxSimultaneousCycles: 9,
		DailyProfitTarget:     1800,
		StopLoss:              StopLossDisabled,
		Period1:               PeriodWindow{StartHour: 0, EndHour: 8, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100},
		Period2:               PeriodWindow{StartHour: 8, EndHour: 16, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100},
		Period3:               PeriodWindow{StartHour: 16, EndHour: 24, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100},
		OutsideHours:          OutsideSettings{FirstEntryDistance: 50, MaxOrders: 10},
	}
}

// bar builds a bar at hour h of day1 with a one-point range around close.
func bar(h int, close float64) core.OHLCV {
	return barAt(day1.Add(time.Duration(h)*time.Hour), close-1, close+1, close)
}

func barAt(t time.Time, low, high, close float64) core.OHLCV {
	return core.OHLCV{Symbol: "XAUUSD", Open: close, High: high, Low: low, Close: close, Time: t}
}

func TestNew_InitialState(t *testing.T) {
	sim := New(testConfig(), nil)

	assert.Equal(t, 10000.0, sim.Balance())
	assert.Equal(t, 10000.0, sim.Equity())
	assert.Zero(t, sim.AnchorPrice())
	assert.Empty(t, sim.OpenOrders())
	assert.Empty(t, sim.Trades())
	assert.Empty(t, sim.EquityCurve())
}

func TestOnTick_AnchorSetOnce(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	assert.Equal(t, 2000.0, sim.AnchorPrice())

	for i, c := range []float64{2010, 1990, 1900, 2100} {
		sim.OnTick(bar(2+i, c), 0, 0)
		assert.Equal(t, 2000.0, sim.AnchorPrice(), "anchor moved on bar %d", i+2)
	}
}

func TestOnTick_OpensBuyBelowAnchor(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1949), 0, 0)

	open := sim.OpenOrders()
	require.Len(t, open, 1)
	o := open[0]
	assert.Equal(t, core.SideBuy, o.Side)
	assert.Equal(t, 1949.0, o.OpenPrice)
	assert.Equal(t, 1, o.Ticket)
	assert.Equal(t, 2049.0, o.TakeProfit)
	assert.Zero(t, o.StopLoss, "stop-loss sentinel should disable SL")
	assert.InDelta(t, 0.07, o.Commission, 1e-9)
	assert.Equal(t, "Period1", o.Comment)
	assert.Equal(t, OrderOpen, o.Status)
}

func TestOnTick_DistanceNotExceeded(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1950), 0, 0) // exactly at anchor - distance
	sim.OnTick(bar(3, 2050), 0, 0)

	assert.Empty(t, sim.OpenOrders())
}

func TestOnTick_MarketRangeWidensDistance(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	// 50 + 200*0.01 = 52 > 51
	sim.OnTick(bar(2, 1949), 200, 0)
	assert.Empty(t, sim.OpenOrders())

	sim.OnTick(bar(3, 1947), 200, 0)
	assert.Len(t, sim.OpenOrders(), 1)
}

func TestOnTick_ImbalanceIgnored(t *testing.T) {
	a := New(testConfig(), nil)
	b := New(testConfig(), nil)

	for i, c := range []float64{2000, 1949, 2060, 1900} {
		a.OnTick(bar(i, c), 0, 0)
		b.OnTick(bar(i, c), 0, -0.9)
	}

	assert.Equal(t, a.Trades(), b.Trades())
	assert.Equal(t, a.EquityCurve(), b.EquityCurve())
}

func TestOnTick_TakeProfitFillsAtTarget(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1949), 0, 0)
	sim.OnTick(barAt(day1.Add(3*time.Hour), 1990, 2060, 2000), 0, 0)

	trades := sim.Trades()
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, 2049.0, tr.ClosePrice)
	assert.Equal(t, ReasonTakeProfit, tr.Reason)
	assert.InDelta(t, (2049-1949)*0.01-0.07, tr.Profit, 1e-9)
	assert.InDelta(t, 10000+tr.Profit, sim.Balance(), 1e-9)
	assert.Empty(t, sim.OpenOrders())

	closed := sim.ClosedOrders()
	require.Len(t, closed, 1)
	assert.Equal(t, OrderClosed, closed[0].Status)
	assert.Equal(t, day1.Add(3*time.Hour), closed[0].CloseTime)
}

func TestOnTick_StopLossFillsAtStop(t *testing.T) {
	cfg := testConfig()
	cfg.StopLoss = 20
	cfg.Period1.FirstEntryDistance = 5
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2010), 0, 0)
	sim.OnTick(bar(2, 2000), 0, 0)

	open := sim.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, 1980.0, open[0].StopLoss)

	sim.OnTick(barAt(day1.Add(3*time.Hour), 1975, 2001, 1985), 0, 0)

	trades := sim.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 1980.0, trades[0].ClosePrice)
	assert.Equal(t, ReasonStopLoss, trades[0].Reason)
	assert.InDelta(t, -20*0.01-0.07, trades[0].Profit, 1e-9)
}

func TestOnTick_TakeProfitBeatsStopLossInSameBar(t *testing.T) {
	cfg := testConfig()
	cfg.StopLoss = 20
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1949), 0, 0)
	// Bar spans both TP 2049 and SL 1929.
	sim.OnTick(barAt(day1.Add(3*time.Hour), 1900, 2100, 2000), 0, 0)

	trades := sim.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, ReasonTakeProfit, trades[0].Reason)
	assert.Equal(t, 2049.0, trades[0].ClosePrice)
}

func TestOnTick_SellLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.StopLoss = 20
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 2051), 0, 0)

	open := sim.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, core.SideSell, open[0].Side)
	assert.Equal(t, 1951.0, open[0].TakeProfit)
	assert.Equal(t, 2071.0, open[0].StopLoss)

	sim.OnTick(barAt(day1.Add(3*time.Hour), 2040, 2080, 2045), 0, 0)

	trades := sim.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, ReasonStopLoss, trades[0].Reason)
	assert.Equal(t, 2071.0, trades[0].ClosePrice)
	assert.InDelta(t, (2051-2071)*0.01-0.07, trades[0].Profit, 1e-9)

	sim.OnTick(bar(4, 2052), 0, 0)
	sim.OnTick(barAt(day1.Add(5*time.Hour), 1950, 2000, 1990), 0, 0)

	trades = sim.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, ReasonTakeProfit, trades[1].Reason)
	assert.Equal(t, 1952.0, trades[1].ClosePrice)
}

func TestOnTick_PeriodMaxOrders(t *testing.T) {
	cfg := testConfig()
	cfg.Period1.MaxOrders = 2
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	for h := 2; h <= 5; h++ {
		sim.OnTick(bar(h, 1900), 0, 0)
	}

	assert.Len(t, sim.OpenOrders(), 2)
	assert.Equal(t, 2, sim.DailyState().OrdersIn(Period1))
}

func TestOnTick_OneSidePerBar(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1900), 0, 0)
	sim.OnTick(bar(3, 2100), 0, 0)

	open := sim.OpenOrders()
	require.Len(t, open, 1, "the 2100 bar closes the BUY at TP and opens nothing else")
	assert.Equal(t, core.SideSell, open[0].Side)
	assert.Len(t, sim.Trades(), 1)
}

func TestOnTick_CycleGate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSimultaneousCycles = 0
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1800), 0, 0)
	sim.OnTick(bar(3, 2200), 0, 0)

	assert.Empty(t, sim.OpenOrders())
	buy, sell := sim.ActiveCycles()
	assert.Zero(t, buy+sell)
	assert.Empty(t, sim.Cycles())
}

func TestOnTick_PeriodCommentAndCounters(t *testing.T) {
	cfg := testConfig()
	cfg.Period1 = PeriodWindow{StartHour: 0, EndHour: 3, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100}
	cfg.Period2 = PeriodWindow{StartHour: 3, EndHour: 6, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100}
	cfg.Period3 = PeriodWindow{StartHour: 6, EndHour: 9, FirstEntryDistance: 50, MaxOrders: 10, TakeProfit: 100}
	sim := New(cfg, nil)

	sim.OnTick(bar(0, 2000), 0, 0)
	sim.OnTick(bar(1, 1900), 0, 0)
	sim.OnTick(bar(4, 1900), 0, 0)
	sim.OnTick(bar(7, 1900), 0, 0)
	sim.OnTick(bar(12, 1900), 0, 0)

	var comments []string
	for _, o := range sim.OpenOrders() {
		comments = append(comments, o.Comment)
	}
	assert.Equal(t, []string{"Period1", "Period2", "Period3", "Period0"}, comments)

	daily := sim.DailyState()
	for _, p := range []Period{Period1, Period2, Period3, PeriodOutside} {
		assert.Equal(t, 1, daily.OrdersIn(p), "period %s", p)
	}
}

func TestOnTick_DailyTarget(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLotSize = 1
	cfg.CommissionPerLot = 0
	cfg.EnableDailyProfitLimit = true
	cfg.DailyProfitTarget = 100
	cfg.Period1.TakeProfit = 60
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1940), 0, 0) // #1 TP 2000
	sim.OnTick(bar(3, 1930), 0, 0) // #2 TP 1990
	sim.OnTick(bar(4, 1900), 0, 0) // #3 TP 1960
	require.Len(t, sim.OpenOrders(), 3)

	// Touches TP of #2 and #3 (60 each), which forces #1 out at the close.
	sim.OnTick(barAt(day1.Add(5*time.Hour), 1899, 1995, 1990), 0, 0)

	trades := sim.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, 2, trades[0].Ticket)
	assert.Equal(t, ReasonTakeProfit, trades[0].Reason)
	assert.Equal(t, 3, trades[1].Ticket)
	assert.Equal(t, ReasonTakeProfit, trades[1].Reason)
	assert.Equal(t, 1, trades[2].Ticket)
	assert.Equal(t, ReasonDailyTarget, trades[2].Reason)
	assert.Equal(t, 1990.0, trades[2].ClosePrice)
	assert.InDelta(t, 50, trades[2].Profit, 1e-9)

	assert.Empty(t, sim.OpenOrders())
	assert.True(t, sim.DailyState().TargetHit)
	assert.InDelta(t, 170, sim.DailyState().Profit, 1e-9)
	assert.InDelta(t, 10170, sim.Balance(), 1e-9)

	// Same day: no new entries even though price is far below the anchor.
	sim.OnTick(bar(6, 1800), 0, 0)
	assert.Empty(t, sim.OpenOrders())

	// Next day trading resumes.
	sim.OnTick(barAt(day1.Add(25*time.Hour), 1799, 1801, 1800), 0, 0)
	open := sim.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, 4, open[0].Ticket)
	assert.False(t, sim.DailyState().TargetHit)
}

func TestOnTick_DailyTargetDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLotSize = 1
	cfg.CommissionPerLot = 0
	cfg.DailyProfitTarget = 10
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1940), 0, 0)
	sim.OnTick(bar(3, 1930), 0, 0)
	sim.OnTick(barAt(day1.Add(4*time.Hour), 2039, 2041, 2040), 0, 0)

	assert.False(t, sim.DailyState().TargetHit)
	assert.Len(t, sim.Trades(), 2)
}

func TestOnTick_DailyReset(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLotSize = 1
	cfg.CommissionPerLot = 0
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	assert.Equal(t, core.DateOf(day1), sim.DailyState().Date)

	sim.OnTick(bar(2, 1940), 0, 0)
	sim.OnTick(barAt(day1.Add(3*time.Hour), 1990, 2045, 2000), 0, 0)
	state := sim.DailyState()
	assert.Equal(t, 1, state.OrdersIn(Period1))
	assert.InDelta(t, 100, state.Profit, 1e-9)

	// Later the same day nothing resets.
	sim.OnTick(bar(23, 2000), 0, 0)
	assert.Equal(t, state, sim.DailyState())

	next := day1.Add(24 * time.Hour)
	sim.OnTick(barAt(next, 1999, 2001, 2000), 0, 0)
	state = sim.DailyState()
	assert.Equal(t, core.DateOf(next), state.Date)
	assert.Zero(t, state.Profit)
	assert.False(t, state.TargetHit)
	assert.Equal(t, [4]int{}, state.PeriodOrders)
}

func TestOnTick_EquityCurve(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1949), 0, 0)
	sim.OnTick(bar(3, 1959), 0, 0)

	curve := sim.EquityCurve()
	require.Len(t, curve, 3)
	assert.Equal(t, day1.Add(3*time.Hour), curve[2].Time)
	assert.Equal(t, 1, curve[2].OpenOrders)
	assert.Equal(t, 10000.0, curve[2].Balance)
	assert.InDelta(t, 10000+10*0.01-0.07, curve[2].Equity, 1e-9)
}

func TestOnTick_EquityAfterCloseExcludesClosedOrder(t *testing.T) {
	sim := New(testConfig(), nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1949), 0, 0)
	sim.OnTick(barAt(day1.Add(3*time.Hour), 2000, 2060, 2045), 0, 0)

	curve := sim.EquityCurve()
	last := curve[len(curve)-1]
	assert.Equal(t, 0, last.OpenOrders)
	assert.InDelta(t, last.Balance, last.Equity, 1e-9)
}

func TestReset_ReplayIsDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.StopLoss = 40
	cfg.EnableDailyProfitLimit = true
	cfg.DailyProfitTarget = 1
	bars := randomWalk(42, 24*10)

	sim := New(cfg, nil)
	for _, b := range bars {
		sim.OnTick(b, 500, 0)
	}
	trades := sim.Trades()
	curve := sim.EquityCurve()
	stats := sim.Statistics()
	require.NotEmpty(t, trades)

	sim.Reset()
	assert.Equal(t, cfg.InitialBalance, sim.Balance())
	assert.Zero(t, sim.AnchorPrice())
	assert.Empty(t, sim.Trades())
	assert.Equal(t, DailyState{}, sim.DailyState())
	assert.Equal(t, cfg, sim.Config())

	sim.Reset()
	for _, b := range bars {
		sim.OnTick(b, 500, 0)
	}
	assert.Equal(t, trades, sim.Trades())
	assert.Equal(t, curve, sim.EquityCurve())
	assert.Equal(t, stats, sim.Statistics())
}

func TestInvariants_RandomWalk(t *testing.T) {
	cfg := testConfig()
	cfg.StopLoss = 30
	cfg.EnableDailyProfitLimit = true
	cfg.DailyProfitTarget = 0.5
	bars := randomWalk(7, 24*20)

	closeAt := make(map[time.Time]float64, len(bars))
	for _, b := range bars {
		closeAt[b.Time] = b.Close
	}

	sim := New(cfg, nil)
	for _, b := range bars {
		sim.OnTick(b, 0, 0)
	}

	var sum float64
	ticket := 0
	for _, o := range sim.ClosedOrders() {
		sum += o.Profit
		if o.Side == core.SideBuy {
			valid := o.ClosePrice == o.TakeProfit ||
				(o.StopLoss > 0 && o.ClosePrice == o.StopLoss) ||
				o.ClosePrice == closeAt[o.CloseTime]
			assert.True(t, valid, "ticket %d closed at %v", o.Ticket, o.ClosePrice)
		}
		assert.False(t, o.CloseTime.Before(o.OpenTime))
		if o.Ticket > ticket {
			ticket = o.Ticket
		}
	}
	assert.InDelta(t, cfg.InitialBalance+sum, sim.Balance(), 1e-6)
	assert.Equal(t, bars[0].Close, sim.AnchorPrice())
	assert.Len(t, sim.EquityCurve(), len(bars))

	stats := sim.Statistics()
	assert.GreaterOrEqual(t, stats.WinRate, 0.0)
	assert.LessOrEqual(t, stats.WinRate, 100.0)
	assert.GreaterOrEqual(t, stats.ProfitFactor, 0.0)
	assert.Equal(t, len(sim.Trades()), stats.TotalTrades)
}

func TestStatistics_Empty(t *testing.T) {
	sim := New(testConfig(), nil)
	sim.OnTick(bar(1, 2000), 0, 0)

	stats := sim.Statistics()
	assert.Equal(t, Statistics{FinalBalance: 10000, FinalEquity: 10000}, stats)
}

func TestStatistics_Values(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLotSize = 1
	cfg.CommissionPerLot = 0
	cfg.StopLoss = 25
	sim := New(cfg, nil)

	sim.OnTick(bar(1, 2000), 0, 0)
	sim.OnTick(bar(2, 1940), 0, 0)                                   // BUY TP 2040 SL 1915
	sim.OnTick(barAt(day1.Add(3*time.Hour), 1962, 2045, 1970), 0, 0) // +100
	sim.OnTick(bar(4, 1940), 0, 0)                                   // BUY TP 2040 SL 1915
	sim.OnTick(barAt(day1.Add(5*time.Hour), 1910, 1942, 1920), 0, 0) // -25

	stats := sim.Statistics()
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 50, stats.WinRate, 1e-9)
	assert.InDelta(t, 100, stats.GrossProfit, 1e-9)
	assert.InDelta(t, 25, stats.GrossLoss, 1e-9)
	assert.InDelta(t, 75, stats.NetProfit, 1e-9)
	assert.InDelta(t, 4, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.75, stats.ReturnPct, 1e-9)
	assert.InDelta(t, 100, stats.AvgWin, 1e-9)
	assert.InDelta(t, 25, stats.AvgLoss, 1e-9)
}

// randomWalk generates hourly bars around 2000 with a fixed seed.
func randomWalk(seed int64, n int) []core.OHLCV {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]core.OHLCV, 0, n)
	price := 2000.0
	for i := 0; i < n; i++ {
		open := price
		price += rng.NormFloat64() * 15
		high := max(open, price) + rng.Float64()*10
		low := min(open, price) - rng.Float64()*10
		bars = append(bars, core.OHLCV{
			Symbol: "XAUUSD",
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Time:   day1.Add(time.Duration(i) * time.Hour),
		})
	}
	return bars
}
