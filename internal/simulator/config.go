package simulator

import "fmt"

const (
	// StopLossDisabled is the sentinel stop-loss distance. A configured StopLoss at
	// or above it means orders are opened without a stop-loss; it is never a price.
	StopLossDisabled = 50000.0

	// MarketRangeScale converts the externally predicted market range into a
	// price-distance nudge added to the period's first-entry distance.
	MarketRangeScale = 0.01
)

// Period is one of the four time-of-day buckets.
type Period int

const (
	PeriodOutside Period = iota
	Period1
	Period2
	Period3
)

// Tag is the order comment for orders opened in the period.
func (p Period) Tag() string {
	return fmt.Sprintf("Period%d", int(p))
}

func (p Period) String() string {
	if p == PeriodOutside {
		return "outside_hours"
	}
	return fmt.Sprintf("period%d", int(p))
}

// PeriodWindow configures one of the three hour-bounded periods.
// The window is the half-open hour range [StartHour, EndHour).
type PeriodWindow struct {
	StartHour          int     `mapstructure:"start_hour" json:"start_hour"`
	EndHour            int     `mapstructure:"end_hour" json:"end_hour"`
	FirstEntryDistance float64 `mapstructure:"first_entry_distance" json:"first_entry_distance"`
	ExtraDistance      float64 `mapstructure:"extra_distance" json:"extra_distance"`
	MaxOrders          int     `mapstructure:"max_orders" json:"max_orders"`
	TakeProfit         float64 `mapstructure:"tp" json:"tp"`
}

// Contains reports whether hour falls inside the window.
func (w PeriodWindow) Contains(hour int) bool {
	return w.StartHour <= hour && hour < w.EndHour
}

// OutsideSettings configures the residual bucket for hours not claimed by
// any period window. It has no take-profit of its own: Period 1's is used.
type OutsideSettings struct {
	FirstEntryDistance float64 `mapstructure:"first_entry_distance" json:"first_entry_distance"`
	ExtraDistance      float64 `mapstructure:"extra_distance" json:"extra_distance"`
	MaxOrders          int     `mapstructure:"max_orders" json:"max_orders"`
}

// PeriodSettings are the entry parameters resolved for the active period.
type PeriodSettings struct {
	FirstEntryDistance float64
	// ExtraDistance is configured per period but not consumed by the entry test.
	ExtraDistance float64
	MaxOrders     int
	TakeProfit    float64
}

// Config holds the strategy parameters of one backtest run.
// It contains no reference types, so a copy is fully independent.
type Config struct {
	Symbol                 string          `mapstructure:"symbol" json:"symbol"`
	InitialBalance         float64         `mapstructure:"initial_balance" json:"initial_balance"`
	DefaultLotSize         float64         `mapstructure:"default_lot_size" json:"default_lot_size"`
	CommissionPerLot       float64         `mapstructure:"commission_per_lot" json:"commission_per_lot"`
	MaxSimultaneousCycles  int             `mapstructure:"max_simultaneous_cycles" json:"max_simultaneous_cycles"`
	DailyProfitTarget      float64         `mapstructure:"daily_profit_target" json:"daily_profit_target"`
	EnableDailyProfitLimit bool            `mapstructure:"enable_daily_profit_limit" json:"enable_daily_profit_limit"`
	StopLoss               float64         `mapstructure:"stop_loss" json:"stop_loss"`
	Period1                PeriodWindow    `mapstructure:"period1" json:"period1"`
	Period2                PeriodWindow    `mapstructure:"period2" json:"period2"`
	Period3                PeriodWindow    `mapstructure:"period3" json:"period3"`
	OutsideHours           OutsideSettings `mapstructure:"outside_hours" json:"outside_hours"`
}

// DefaultConfig returns the stock Box-EA parameters.
func DefaultConfig() Config {
	return Config{
		Symbol:                 "XAUUSD",
		InitialBalance:         10000,
		DefaultLotSize:         0.01,
		CommissionPerLot:       7,
		MaxSimultaneousCycles:  9,
		DailyProfitTarget:      1800,
		EnableDailyProfitLimit: false,
		StopLoss:               36999,
		Period1: PeriodWindow{
			StartHour: 0, EndHour: 3,
			FirstEntryDistance: 3, ExtraDistance: 9,
			MaxOrders: 99, TakeProfit: 999,
		},
		Period2: PeriodWindow{
			StartHour: 11, EndHour: 17,
			FirstEntryDistance: 9, ExtraDistance: 9,
			MaxOrders: 99, TakeProfit: 999,
		},
		Period3: PeriodWindow{
			StartHour: 17, EndHour: 21,
			FirstEntryDistance: 9, ExtraDistance: 6,
			MaxOrders: 99, TakeProfit: 999,
		},
		OutsideHours: OutsideSettings{
			FirstEntryDistance: 9,
			ExtraDistance:      1,
			MaxOrders:          99,
		},
	}
}

// PeriodAt classifies an hour of day. Windows are checked in order
// Period 1, 2, 3; overlapping hours go to the first match and hours no
// window claims fall to PeriodOutside.
func (c Config) PeriodAt(hour int) Period {
	switch {
	case c.Period1.Contains(hour):
		return Period1
	case c.Period2.Contains(hour):
		return Period2
	case c.Period3.Contains(hour):
		return Period3
	default:
		return PeriodOutside
	}
}

// Settings returns the entry parameters for period p.
func (c Config) Settings(p Period) PeriodSettings {
	switch p {
	case Period1:
		return c.Period1.settings()
	case Period2:
		return c.Period2.settings()
	case Period3:
		return c.Period3.settings()
	default:
		return PeriodSettings{
			FirstEntryDistance: c.OutsideHours.FirstEntryDistance,
			ExtraDistance:      c.OutsideHours.ExtraDistance,
			MaxOrders:          c.OutsideHours.MaxOrders,
			TakeProfit:         c.Period1.TakeProfit,
		}
	}
}

// StopLossEnabled reports whether orders get a stop-loss price.
func (c Config) StopLossEnabled() bool {
	return c.StopLoss < StopLossDisabled
}

func (w PeriodWindow) settings() PeriodSettings {
	return PeriodSettings{
		FirstEntryDistance: w.FirstEntryDistance,
		ExtraDistance:      w.ExtraDistance,
		MaxOrders:          w.MaxOrders,
		TakeProfit:         w.TakeProfit,
	}
}
