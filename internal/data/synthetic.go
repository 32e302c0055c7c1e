package data

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/newthinker/boxsim/internal/core"
)

// SyntheticConfig describes a generated random-walk series.
type SyntheticConfig struct {
	Symbol    string
	Start     time.Time
	End       time.Time // inclusive
	Timeframe string
	BasePrice float64
	// Volatility is the standard deviation of the per-bar log return.
	Volatility float64
	Seed       int64
}

// Synthetic generates a geometric random walk with OHLC noise around it.
// The same config always yields the same bars.
func Synthetic(cfg SyntheticConfig) ([]core.OHLCV, error) {
	step, err := ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if cfg.End.Before(cfg.Start) {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end %s before start %s", cfg.End, cfg.Start))
	}
	if cfg.BasePrice <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("base price must be positive, got %v", cfg.BasePrice))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	var bars []core.OHLCV
	logPrice := math.Log(cfg.BasePrice)
	for t := cfg.Start; !t.After(cfg.End); t = t.Add(step) {
		logPrice += rng.NormFloat64() * cfg.Volatility
		price := math.Exp(logPrice)

		open := price * uniform(0.999, 1.001)
		cls := price * uniform(0.999, 1.001)
		high := math.Max(open, cls) * uniform(1.0, 1.002)
		low := math.Min(open, cls) * uniform(0.998, 1.0)

		bars = append(bars, core.OHLCV{
			Symbol:   cfg.Symbol,
			Interval: cfg.Timeframe,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   float64(100 + rng.Intn(9900)),
			Time:     t,
		})
	}
	return bars, nil
}
