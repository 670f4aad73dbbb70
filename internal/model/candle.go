package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLC(V) sample for a fixed time bucket.
// Prices are raw float64 quotes as delivered by the provider.
// Candles are immutable once produced and ordered oldest-first in a series.
type Candle struct {
	OpenTime time.Time `json:"open_time"` // bucket start time (UTC)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close series from a candle series, preserving order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Interval identifies a candle resolution as understood by the provider.
type Interval string

const (
	Interval1H Interval = "1h" // primary analysis timeframe
	Interval4H Interval = "4h" // higher timeframe for trend confirmation
)
