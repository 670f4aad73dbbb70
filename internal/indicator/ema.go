package indicator

// EMA returns the Exponential Moving Average at the end of the series.
// The first EMA value is seeded with the SMA of the first period samples,
// then the recurrence ema = close*k + ema*(1-k) with k = 2/(period+1) is
// applied for every subsequent sample. ok is false below period samples.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	ema := mean(values[:period])
	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}
