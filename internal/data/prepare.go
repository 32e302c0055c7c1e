package data

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/boxsim/internal/core"
)

// Validate checks that every bar has finite prices and that its high and low
// bracket open and close.
func Validate(bars []core.OHLCV) error {
	if len(bars) == 0 {
		return core.ErrNoData
	}

	invalid := 0
	first := -1
	for i, b := range bars {
		if !finite(b.Open, b.High, b.Low, b.Close) || !b.IsValid() {
			invalid++
			if first < 0 {
				first = i
			}
		}
	}
	if invalid > 0 {
		return core.WrapError(core.ErrInvalidBar,
			fmt.Errorf("found %d invalid OHLC rows, first at %s", invalid, bars[first].Time.Format(time.RFC3339)))
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Filter returns the bars with from <= Time < to. A zero bound is open.
// The result shares storage with bars.
func Filter(bars []core.OHLCV, from, to time.Time) []core.OHLCV {
	start, end := 0, len(bars)
	for start < end && !from.IsZero() && bars[start].Time.Before(from) {
		start++
	}
	for end > start && !to.IsZero() && !bars[end-1].Time.Before(to) {
		end--
	}
	return bars[start:end]
}

var timeframes = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"D1":  24 * time.Hour,
}

// ParseTimeframe converts a MetaTrader timeframe label such as "M5" or "H1".
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown timeframe %q", tf))
	}
	return d, nil
}

// Resample aggregates time-sorted bars into buckets of the given timeframe:
// first open, highest high, lowest low, last close and summed volume.
func Resample(bars []core.OHLCV, timeframe string) ([]core.OHLCV, error) {
	d, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	var out []core.OHLCV
	for _, b := range bars {
		bucket := b.Time.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(bucket) {
			cur := &out[n-1]
			cur.High = math.Max(cur.High, b.High)
			cur.Low = math.Min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Time = bucket
		b.Interval = timeframe
		out = append(out, b)
	}
	return out, nil
}
