package indicator

// SMA returns the Simple Moving Average over the last period values.
// ok is false when the series is shorter than period.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return mean(values[len(values)-period:]), true
}
