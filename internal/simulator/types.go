package simulator

import (
	"time"

	"github.com/newthinker/boxsim/internal/core"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
	// OrderCancelled is reserved; the simulator never cancels orders.
	OrderCancelled OrderStatus = "CANCELLED"
)

// CloseReason explains why an order left the book.
type CloseReason string

const (
	ReasonTakeProfit  CloseReason = "TP"
	ReasonStopLoss    CloseReason = "SL"
	ReasonDailyTarget CloseReason = "Daily Target"
)

// Order is one simulated position.
type Order struct {
	Ticket     int
	Side       core.Side
	OpenPrice  float64
	LotSize    float64
	OpenTime   time.Time
	TakeProfit float64
	StopLoss   float64 // 0 when disabled
	ClosePrice float64
	CloseTime  time.Time
	Status     OrderStatus
	Profit     float64 // floating while OPEN, realized once CLOSED
	Commission float64
	Comment    string
	CycleID    int
	Period     Period
}

// ProfitAt returns the order's profit if it were closed at price.
// One price unit per lot is worth one account unit.
func (o *Order) ProfitAt(price float64) float64 {
	points := (price - o.OpenPrice) * o.Side.Sign()
	return points*o.LotSize - o.Commission
}

// IsOpen reports whether the order is still on the book.
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}

// exitAt returns the fill price and reason if the bar touches the order's
// take-profit or stop-loss. Take-profit is checked first.
func (o *Order) exitAt(bar core.OHLCV) (float64, CloseReason, bool) {
	if o.Side == core.SideBuy {
		if o.TakeProfit > 0 && bar.High >= o.TakeProfit {
			return o.TakeProfit, ReasonTakeProfit, true
		}
		if o.StopLoss > 0 && bar.Low <= o.StopLoss {
			return o.StopLoss, ReasonStopLoss, true
		}
		return 0, "", false
	}

	if o.TakeProfit > 0 && bar.Low <= o.TakeProfit {
		return o.TakeProfit, ReasonTakeProfit, true
	}
	if o.StopLoss > 0 && bar.High >= o.StopLoss {
		return o.StopLoss, ReasonStopLoss, true
	}
	return 0, "", false
}

// Cycle groups orders opened in one direction against one anchor price.
type Cycle struct {
	ID          int
	Side        core.Side
	AnchorPrice float64
	StartTime   time.Time
	Period      Period
	Active      bool
	TotalProfit float64
}

// EquityPoint is one equity-curve sample, recorded at the end of every bar.
type EquityPoint struct {
	Time       time.Time `json:"datetime"`
	Equity     float64   `json:"equity"`
	Balance    float64   `json:"balance"`
	OpenOrders int       `json:"open_orders"`
}

// TradeRecord is the terminal record of a closed order.
type TradeRecord struct {
	Ticket     int         `json:"ticket"`
	Side       core.Side   `json:"type"`
	OpenTime   time.Time   `json:"open_time"`
	OpenPrice  float64     `json:"open_price"`
	CloseTime  time.Time   `json:"close_time"`
	ClosePrice float64     `json:"close_price"`
	LotSize    float64     `json:"lot_size"`
	Profit     float64     `json:"profit"`
	Reason     CloseReason `json:"reason"`
	Comment    string      `json:"comment"`
}

// Duration is the time the order stayed open.
func (t TradeRecord) Duration() time.Duration {
	return t.CloseTime.Sub(t.OpenTime)
}

// IsWin returns true if the trade was profitable
func (t TradeRecord) IsWin() bool {
	return t.Profit > 0
}

// IsLoss returns true if the trade lost money
func (t TradeRecord) IsLoss() bool {
	return t.Profit < 0
}

// DailyState is the bookkeeping reset on every new calendar day.
type DailyState struct {
	Date      core.Date
	Profit    float64
	TargetHit bool
	// PeriodOrders counts orders opened today, indexed by Period.
	PeriodOrders [4]int
}

// OrdersIn returns today's order count for period p.
func (d DailyState) OrdersIn(p Period) int {
	if p < PeriodOutside || p > Period3 {
		return 0
	}
	return d.PeriodOrders[p]
}
