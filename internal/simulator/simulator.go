// Package simulator replays OHLC bars against the Box-EA order-cycling strategy.
//
// A Simulator is owned by a single backtest run and is not safe for concurrent
// use. Bars must be fed in non-decreasing time order.
package simulator

import (
	"github.com/newthinker/boxsim/internal/core"
	"go.uber.org/zap"
)

// Simulator holds the account, order book and daily bookkeeping of one run.
type Simulator struct {
	cfg    Config
	logger *zap.Logger

	balance float64
	equity  float64

	open   []*Order
	closed []*Order
	cycles []*Cycle

	// anchorPrice is 0 until the first bar, then fixed for the run.
	anchorPrice float64

	daily      DailyState
	nextTicket int

	// Active cycle counters gate entries against MaxSimultaneousCycles.
	// Nothing increments them; see DESIGN.md.
	activeBuyCycles  int
	activeSellCycles int

	equityCurve []EquityPoint
	trades      []TradeRecord
}

// New creates a simulator funded with cfg.InitialBalance.
func New(cfg Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "simulator"), zap.String("symbol", cfg.Symbol)),
	}
	s.Reset()

	s.logger.Info("simulator initialized", zap.Float64("balance", s.balance))
	return s
}

// Reset returns the simulator to its initial state so the same instance can run
// an independent backtest. The configuration is not touched.
func (s *Simulator) Reset() {
	s.balance = s.cfg.InitialBalance
	s.equity = s.cfg.InitialBalance
	s.open = nil
	s.closed = nil
	s.cycles = nil
	s.anchorPrice = 0
	s.daily = DailyState{}
	s.nextTicket = 1
	s.activeBuyCycles = 0
	s.activeSellCycles = 0
	s.equityCurve = nil
	s.trades = nil
}

// OnTick processes one bar. marketRange is the externally predicted market
// range; imbalance is accepted for the predictor contract but the entry logic
// does not consume it.
func (s *Simulator) OnTick(bar core.OHLCV, marketRange, imbalance float64) {
	_ = imbalance

	s.checkNewDay(bar)
	s.markToMarket(bar.Close)
	s.resolveExits(bar)

	if s.anchorPrice == 0 {
		s.anchorPrice = bar.Close
		s.logger.Debug("anchor price set", zap.Float64("anchor", s.anchorPrice))
	}

	if !s.daily.TargetHit {
		s.checkEntries(bar, marketRange)
	}

	s.equityCurve = append(s.equityCurve, EquityPoint{
		Time:       bar.Time,
		Equity:     s.equity,
		Balance:    s.balance,
		OpenOrders: len(s.open),
	})
}

func (s *Simulator) checkNewDay(bar core.OHLCV) {
	day := core.DateOf(bar.Time)
	if s.daily.Date.IsZero() {
		s.daily.Date = day
		return
	}
	if day == s.daily.Date {
		return
	}

	s.logger.Info("new trading day",
		zap.Stringer("date", day),
		zap.Float64("previous_daily_profit", s.daily.Profit),
	)
	s.daily = DailyState{Date: day}
}

// markToMarket refreshes floating profit of open orders and the equity.
func (s *Simulator) markToMarket(price float64) {
	var floating float64
	for _, o := range s.open {
		o.Profit = o.ProfitAt(price)
		floating += o.Profit
	}
	s.equity = s.balance + floating
}

type exit struct {
	order  *Order
	price  float64
	reason CloseReason
}

func (s *Simulator) resolveExits(bar core.OHLCV) {
	var exits []exit
	for _, o := range s.open {
		if price, reason, ok := o.exitAt(bar); ok {
			exits = append(exits, exit{order: o, price: price, reason: reason})
		}
	}
	if len(exits) == 0 {
		return
	}

	for _, ex := range exits {
		// A daily-target sweep earlier in this loop may have closed it already.
		if !ex.order.IsOpen() {
			continue
		}
		s.closeOrder(ex.order, ex.price, bar, ex.reason)

		if s.dailyTargetReached() {
			s.daily.TargetHit = true
			s.logger.Info("daily target hit",
				zap.Stringer("date", s.daily.Date),
				zap.Float64("daily_profit", s.daily.Profit),
				zap.Float64("target", s.cfg.DailyProfitTarget),
			)
			s.closeAll(bar, ReasonDailyTarget)
		}
	}

	s.markToMarket(bar.Close)
}

func (s *Simulator) dailyTargetReached() bool {
	return s.cfg.EnableDailyProfitLimit &&
		!s.daily.TargetHit &&
		s.daily.Profit >= s.cfg.DailyProfitTarget
}

func (s *Simulator) closeOrder(o *Order, price float64, bar core.OHLCV, reason CloseReason) {
	o.ClosePrice = price
	o.CloseTime = bar.Time
	o.Status = OrderClosed
	o.Profit = o.ProfitAt(price)

	s.balance += o.Profit
	s.daily.Profit += o.Profit

	s.removeOpen(o.Ticket)
	s.closed = append(s.closed, o)

	s.trades = append(s.trades, TradeRecord{
		Ticket:     o.Ticket,
		Side:       o.Side,
		OpenTime:   o.OpenTime,
		OpenPrice:  o.OpenPrice,
		CloseTime:  o.CloseTime,
		ClosePrice: o.ClosePrice,
		LotSize:    o.LotSize,
		Profit:     o.Profit,
		Reason:     reason,
		Comment:    o.Comment,
	})

	s.logger.Debug("order closed",
		zap.Int("ticket", o.Ticket),
		zap.String("side", string(o.Side)),
		zap.Float64("price", price),
		zap.Float64("profit", o.Profit),
		zap.String("reason", string(reason)),
	)
}

// closeAll closes every open order at the bar's close price.
func (s *Simulator) closeAll(bar core.OHLCV, reason CloseReason) {
	remaining := make([]*Order, len(s.open))
	copy(remaining, s.open)
	for _, o := range remaining {
		s.closeOrder(o, bar.Close, bar, reason)
	}
}

func (s *Simulator) removeOpen(ticket int) {
	for i, o := range s.open {
		if o.Ticket == ticket {
			s.open = append(s.open[:i], s.open[i+1:]...)
			return
		}
	}
}

func (s *Simulator) checkEntries(bar core.OHLCV, marketRange float64) {
	period := s.cfg.PeriodAt(bar.Time.Hour())
	settings := s.cfg.Settings(period)
	distance := settings.FirstEntryDistance + marketRange*MarketRangeScale

	if s.activeBuyCycles+s.activeSellCycles >= s.cfg.MaxSimultaneousCycles {
		return
	}

	price := bar.Close
	switch {
	case price < s.anchorPrice-distance:
		if s.countOpen(core.SideBuy) < settings.MaxOrders {
			s.openOrder(core.SideBuy, bar, settings.TakeProfit, period)
		}
	case price > s.anchorPrice+distance:
		if s.countOpen(core.SideSell) < settings.MaxOrders {
			s.openOrder(core.SideSell, bar, settings.TakeProfit, period)
		}
	}
}

func (s *Simulator) countOpen(side core.Side) int {
	n := 0
	for _, o := range s.open {
		if o.Side == side {
			n++
		}
	}
	return n
}

func (s *Simulator) openOrder(side core.Side, bar core.OHLCV, tpDistance float64, period Period) *Order {
	price := bar.Close
	lot := s.cfg.DefaultLotSize
	sign := side.Sign()

	var stopLoss float64
	if s.cfg.StopLossEnabled() {
		stopLoss = price - sign*s.cfg.StopLoss
	}

	o := &Order{
		Ticket:     s.nextTicket,
		Side:       side,
		OpenPrice:  price,
		LotSize:    lot,
		OpenTime:   bar.Time,
		TakeProfit: price + sign*tpDistance,
		StopLoss:   stopLoss,
		Status:     OrderOpen,
		Commission: s.cfg.CommissionPerLot * lot,
		Comment:    period.Tag(),
		Period:     period,
	}
	s.nextTicket++
	s.open = append(s.open, o)
	s.daily.PeriodOrders[period]++

	s.logger.Debug("order opened",
		zap.Int("ticket", o.Ticket),
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("tp", o.TakeProfit),
		zap.Float64("sl", o.StopLoss),
		zap.String("period", period.String()),
	)
	return o
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Balance is the realized account balance.
func (s *Simulator) Balance() float64 { return s.balance }

// Equity is the balance plus floating profit at the last bar's close.
func (s *Simulator) Equity() float64 { return s.equity }

// AnchorPrice is the run's fixed reference price, 0 before the first bar.
func (s *Simulator) AnchorPrice() float64 { return s.anchorPrice }

// DailyState returns today's bookkeeping.
func (s *Simulator) DailyState() DailyState { return s.daily }

// ActiveCycles returns the BUY and SELL cycle counts used by the entry gate.
func (s *Simulator) ActiveCycles() (buy, sell int) {
	return s.activeBuyCycles, s.activeSellCycles
}

// OpenOrders returns copies of the open orders in opening order.
func (s *Simulator) OpenOrders() []Order {
	return copyOrders(s.open)
}

// ClosedOrders returns copies of the closed orders in closing order.
func (s *Simulator) ClosedOrders() []Order {
	return copyOrders(s.closed)
}

// Cycles returns copies of the tracked trading cycles.
func (s *Simulator) Cycles() []Cycle {
	out := make([]Cycle, 0, len(s.cycles))
	for _, c := range s.cycles {
		out = append(out, *c)
	}
	return out
}

// EquityCurve returns a copy of the equity samples, one per processed bar.
func (s *Simulator) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(s.equityCurve))
	copy(out, s.equityCurve)
	return out
}

// Trades returns a copy of the trade log in closing order.
func (s *Simulator) Trades() []TradeRecord {
	out := make([]TradeRecord, len(s.trades))
	copy(out, s.trades)
	return out
}

func copyOrders(orders []*Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, *o)
	}
	return out
}
