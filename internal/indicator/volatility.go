package indicator

import (
	"math"

	"github.com/newthinker/boxsim/internal/core"
)

// TrueRange returns the true range of every bar that has a predecessor, so the
// result is one shorter than bars.
func TrueRange(bars []core.OHLCV) []float64 {
	if len(bars) < 2 {
		return []float64{}
	}

	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		b := bars[i]
		tr := math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		out = append(out, tr)
	}
	return out
}

// ATR returns the latest average true range over period bars. ok is false
// until period true ranges are available.
func ATR(bars []core.OHLCV, period int) (atr float64, ok bool) {
	return Last(SMA(TrueRange(bars), period))
}

// HighLowRange is the distance between the highest high and lowest low of the
// last n bars.
func HighLowRange(bars []core.OHLCV, n int) float64 {
	window := Tail(bars, n)
	if len(window) == 0 {
		return 0
	}

	high, low := window[0].High, window[0].Low
	for _, b := range window[1:] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high - low
}

// Tail returns at most the last n bars.
func Tail(bars []core.OHLCV, n int) []core.OHLCV {
	if n <= 0 {
		return nil
	}
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
