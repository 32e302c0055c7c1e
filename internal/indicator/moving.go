// Package indicator computes the price indicators the market-range predictor
// consumes.
package indicator

// SMA returns the simple moving average of values over period.
// The result has len(values)-period+1 entries, or none when values is shorter
// than period or period is not positive.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}

	out := make([]float64, 0, len(values)-period+1)

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	out = append(out, sum/float64(period))

	for i := period; i < len(values); i++ {
		sum += values[i] - values[i-period]
		out = append(out, sum/float64(period))
	}
	return out
}

// Last returns the final element of values.
func Last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
