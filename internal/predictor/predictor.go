// Package predictor supplies the per-bar market-range and imbalance signal the
// simulator consumes in place of a live AI service.
package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/indicator"
)

// Modes accepted by New.
const (
	ModeRuleBased = "rule_based"
	ModeFixed     = "fixed"
	ModeImbalance = "imbalance"
)

const (
	// DefaultMarketRange is used by the fixed predictor when none is configured.
	DefaultMarketRange = 15000.0

	// ImbalanceWindow is how many recent bars the imbalance and range fallback
	// look at.
	ImbalanceWindow = 20

	atrPeriod     = 14
	atrMultiplier = 10.0
	rangeFallback = 0.5

	minRuleRange = 5000.0
	maxRuleRange = 30000.0

	imbalanceScale    = 15000.0
	minImbalanceRange = 1.0
)

// Prediction is the signal produced for one bar.
type Prediction struct {
	Time        time.Time `json:"datetime"`
	MarketRange float64   `json:"market_range"`
	Imbalance   float64   `json:"imbalance"`
	Method      string    `json:"method"`
}

// Predictor produces a Prediction for bar. history holds every bar seen so
// far, ending with bar itself.
type Predictor interface {
	Predict(bar core.OHLCV, history []core.OHLCV) Prediction
}

// New returns the predictor for mode. defaultRange is only used by ModeFixed;
// zero selects DefaultMarketRange.
func New(mode string, defaultRange float64) (Predictor, error) {
	switch mode {
	case ModeRuleBased, "":
		return RuleBased{}, nil
	case ModeFixed:
		if defaultRange == 0 {
			defaultRange = DefaultMarketRange
		}
		return Fixed{Range: defaultRange}, nil
	case ModeImbalance:
		return FromImbalance{}, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown predictor mode %q", mode))
	}
}

// RuleBased derives the market range from volatility and time of day.
type RuleBased struct{}

func (RuleBased) Predict(bar core.OHLCV, history []core.OHLCV) Prediction {
	var mr float64
	if atr, ok := indicator.ATR(indicator.Tail(history, atrPeriod+1), atrPeriod); ok {
		mr = atr * atrMultiplier
	} else {
		mr = indicator.HighLowRange(history, ImbalanceWindow) * rangeFallback
	}
	mr *= sessionMultiplier(bar.Time.Hour())

	return Prediction{
		Time:        bar.Time,
		MarketRange: clamp(mr, minRuleRange, maxRuleRange),
		Imbalance:   Imbalance(history),
		Method:      ModeRuleBased,
	}
}

// sessionMultiplier scales the range by trading session.
func sessionMultiplier(hour int) float64 {
	switch {
	case hour >= 0 && hour < 8: // Asia
		return 0.7
	case hour >= 8 && hour < 12: // London open
		return 1.3
	case hour >= 13 && hour < 17: // New York
		return 1.5
	default:
		return 0.8
	}
}

// Fixed always predicts the same market range.
type Fixed struct {
	Range float64
}

func (f Fixed) Predict(bar core.OHLCV, history []core.OHLCV) Prediction {
	return Prediction{
		Time:        bar.Time,
		MarketRange: f.Range,
		Imbalance:   Imbalance(history),
		Method:      ModeFixed,
	}
}

// FromImbalance mirrors the live API formula: |imbalance| x 15000.
type FromImbalance struct{}

func (FromImbalance) Predict(bar core.OHLCV, history []core.OHLCV) Prediction {
	imb := Imbalance(history)
	return Prediction{
		Time:        bar.Time,
		MarketRange: RangeFromImbalance(imb),
		Imbalance:   imb,
		Method:      ModeImbalance,
	}
}

// RangeFromImbalance converts an imbalance in [-1, 1] to a market range.
func RangeFromImbalance(imbalance float64) float64 {
	return clamp(math.Abs(imbalance)*imbalanceScale, minImbalanceRange, maxRuleRange)
}

// Imbalance is the share of up-closes minus down-closes over the last
// ImbalanceWindow bars, in [-1, 1]. Fewer than two bars give 0.
func Imbalance(history []core.OHLCV) float64 {
	window := indicator.Tail(history, ImbalanceWindow)
	if len(window) < 2 {
		return 0
	}

	var ups, downs int
	for i := 1; i < len(window); i++ {
		switch d := window[i].Close - window[i-1].Close; {
		case d > 0:
			ups++
		case d < 0:
			downs++
		}
	}
	return float64(ups-downs) / float64(len(window)-1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
