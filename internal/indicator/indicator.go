// Package indicator provides technical indicator calculations over candle data.
//
// All functions are pure: they operate on a chronologically ordered slice of
// closes or candles, allocate no shared state, and report insufficient input
// with ok=false instead of panicking or fabricating a value.
package indicator

import "math"

// mean returns the arithmetic mean of values. Caller guarantees len > 0.
func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev returns the population standard deviation of values.
// Caller guarantees len > 0.
func stdDev(values []float64) float64 {
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
