package indicator

import (
	"math"
	"testing"
	"time"

	"fxsignals/internal/model"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func makeCandles(closes []float64, spread float64) []model.Candle {
	candles := make([]model.Candle, len(closes))
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = model.Candle{
			OpenTime: ts.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c + spread,
			Low:      c - spread,
			Close:    c,
			Volume:   1000,
		}
	}
	return candles
}

func TestInsufficientDataNeverFabricates(t *testing.T) {
	short := []float64{1.1, 1.2, 1.3}
	if _, ok := SMA(short, 5); ok {
		t.Error("SMA should report insufficient data")
	}
	if _, ok := EMA(short, 5); ok {
		t.Error("EMA should report insufficient data")
	}
	if _, ok := RSI(short, 14); ok {
		t.Error("RSI should report insufficient data")
	}
	if _, ok := Bollinger(short, 20, 2); ok {
		t.Error("Bollinger should report insufficient data")
	}
	candles := makeCandles(short, 0.001)
	if _, ok := ATR(candles, 14); ok {
		t.Error("ATR should report insufficient data")
	}
	if _, ok := ADX(candles, 14); ok {
		t.Error("ADX should report insufficient data")
	}
	// Empty and nil inputs must behave the same.
	if _, ok := SMA(nil, 1); ok {
		t.Error("SMA on nil should report insufficient data")
	}
	if _, ok := ADX(nil, 14); ok {
		t.Error("ADX on nil should report insufficient data")
	}
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	got, ok := SMA(values, 3)
	if !ok {
		t.Fatal("expected SMA to be defined")
	}
	if !almostEqual(got, 5.0, 1e-9) {
		t.Errorf("SMA = %v, want 5.0", got)
	}
}

func TestEMASeedEqualsSMA(t *testing.T) {
	// EMA over exactly period samples is the SMA of those samples.
	values := []float64{1.10, 1.12, 1.09, 1.15, 1.13}
	ema, ok1 := EMA(values, 5)
	sma, ok2 := SMA(values, 5)
	if !ok1 || !ok2 {
		t.Fatal("expected both to be defined")
	}
	if !almostEqual(ema, sma, 1e-12) {
		t.Errorf("EMA seed %v != SMA %v", ema, sma)
	}
}

func TestEMARecurrence(t *testing.T) {
	values := []float64{1, 1, 1, 2}
	// Seed = SMA(1,1,1) = 1, then k = 2/4 = 0.5 → 2*0.5 + 1*0.5 = 1.5
	got, ok := EMA(values, 3)
	if !ok {
		t.Fatal("expected EMA to be defined")
	}
	if !almostEqual(got, 1.5, 1e-12) {
		t.Errorf("EMA = %v, want 1.5", got)
	}
}

func TestRSIBounds(t *testing.T) {
	closes := make([]float64, 100)
	closes[0] = 1.1000
	for i := 1; i < len(closes); i++ {
		// Alternate gains and losses of differing magnitude.
		if i%2 == 0 {
			closes[i] = closes[i-1] + 0.0010
		} else {
			closes[i] = closes[i-1] - 0.0004
		}
	}
	got, ok := RSI(closes, 14)
	if !ok {
		t.Fatal("expected RSI to be defined")
	}
	if got < 0 || got > 100 {
		t.Errorf("RSI = %v, out of [0,100]", got)
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1.1000 + float64(i)*0.0010
	}
	got, ok := RSI(closes, 14)
	if !ok {
		t.Fatal("expected RSI to be defined")
	}
	if got != 100.0 {
		t.Errorf("RSI = %v, want exactly 100 with zero average loss", got)
	}
}

func TestATR(t *testing.T) {
	// Constant closes with a fixed high-low spread: TR = 2*spread each bar.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.2000
	}
	candles := makeCandles(closes, 0.0010)
	got, ok := ATR(candles, 14)
	if !ok {
		t.Fatal("expected ATR to be defined")
	}
	if !almostEqual(got, 0.0020, 1e-9) {
		t.Errorf("ATR = %v, want 0.0020", got)
	}
}

func TestATRUsesGaps(t *testing.T) {
	// A gap beyond the bar's own range must widen the true range.
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 1.2000
	}
	candles := makeCandles(closes, 0.0010)
	// Gap the last candle up by 0.01 relative to the previous close.
	candles[15].Open = 1.2100
	candles[15].High = 1.2110
	candles[15].Low = 1.2090
	candles[15].Close = 1.2100

	got, ok := ATR(candles, 14)
	if !ok {
		t.Fatal("expected ATR to be defined")
	}
	plain := 0.0020 // what ATR would be without the gap
	if got <= plain {
		t.Errorf("ATR = %v, expected > %v after a gap bar", got, plain)
	}
}

func TestBollinger(t *testing.T) {
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9} // stddev = 2
	b, ok := Bollinger(closes, 8, 2)
	if !ok {
		t.Fatal("expected bands to be defined")
	}
	if !almostEqual(b.Middle, 5.0, 1e-9) {
		t.Errorf("middle = %v, want 5.0", b.Middle)
	}
	if !almostEqual(b.Upper, 9.0, 1e-9) {
		t.Errorf("upper = %v, want 9.0", b.Upper)
	}
	if !almostEqual(b.Lower, 1.0, 1e-9) {
		t.Errorf("lower = %v, want 1.0", b.Lower)
	}
	if !almostEqual(b.Bandwidth, 8.0/5.0, 1e-9) {
		t.Errorf("bandwidth = %v, want 1.6", b.Bandwidth)
	}
}

// Regression: ADX must respond to its input. A placeholder that returns a
// constant-shaped result would pass a smoke test but fail this.
func TestADXVariesWithInput(t *testing.T) {
	// Strong one-way trend.
	trending := make([]float64, 60)
	for i := range trending {
		trending[i] = 1.1000 + float64(i)*0.0020
	}
	// Choppy range.
	choppy := make([]float64, 60)
	for i := range choppy {
		if i%2 == 0 {
			choppy[i] = 1.1000
		} else {
			choppy[i] = 1.1010
		}
	}

	tr1, ok := ADX(makeCandles(trending, 0.0005), 14)
	if !ok {
		t.Fatal("expected ADX to be defined for trending series")
	}
	tr2, ok := ADX(makeCandles(choppy, 0.0005), 14)
	if !ok {
		t.Fatal("expected ADX to be defined for choppy series")
	}

	if tr1.ADX == tr2.ADX {
		t.Errorf("ADX identical for trending (%v) and choppy (%v) input", tr1.ADX, tr2.ADX)
	}
	if tr1.ADX <= tr2.ADX {
		t.Errorf("trending ADX %v should exceed choppy ADX %v", tr1.ADX, tr2.ADX)
	}
	for _, v := range []float64{tr1.ADX, tr1.PlusDI, tr1.MinusDI, tr2.ADX} {
		if v < 0 || v > 100 {
			t.Errorf("value %v out of [0,100]", v)
		}
	}
	// In an uptrend +DI must dominate.
	if tr1.PlusDI <= tr1.MinusDI {
		t.Errorf("uptrend: +DI %v should exceed -DI %v", tr1.PlusDI, tr1.MinusDI)
	}
}
