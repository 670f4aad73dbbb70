package strategy

import (
	"testing"

	"fxsignals/internal/model"
)

func TestSwingLevels(t *testing.T) {
	// Tent shape: strictly rising into index 30, strictly falling after.
	// The only swing extreme is the peak high.
	tent := make([]float64, 60)
	for i := range tent {
		if i <= 30 {
			tent[i] = 1.2000 + float64(i)*0.0010
		} else {
			tent[i] = 1.2300 - float64(i-30)*0.0010
		}
	}
	peakHigh := 1.2300 + 0.0005
	highs, lows := swingLevels(candlesFromCloses(tent, 0.0005))
	if len(highs) != 1 || highs[0] != peakHigh {
		t.Errorf("tent highs = %v, want [%v]", highs, peakHigh)
	}
	if len(lows) != 0 {
		t.Errorf("tent lows = %v, want none", lows)
	}

	// Valley shape: the mirror case yields one swing low.
	valley := make([]float64, 60)
	for i := range valley {
		if i <= 30 {
			valley[i] = 1.2300 - float64(i)*0.0010
		} else {
			valley[i] = 1.2000 + float64(i-30)*0.0010
		}
	}
	troughLow := 1.2000 - 0.0005
	highs, lows = swingLevels(candlesFromCloses(valley, 0.0005))
	if len(lows) != 1 || lows[0] != troughLow {
		t.Errorf("valley lows = %v, want [%v]", lows, troughLow)
	}
	if len(highs) != 0 {
		t.Errorf("valley highs = %v, want none", highs)
	}

	// Flat ties qualify everywhere; retention must cap at the most recent 10.
	flat := make([]float64, 80)
	for i := range flat {
		flat[i] = 1.2000
	}
	highs, lows = swingLevels(candlesFromCloses(flat, 0.0005))
	if len(highs) != maxSwingLevels || len(lows) != maxSwingLevels {
		t.Errorf("flat series should cap at %d levels, got %d highs %d lows",
			maxSwingLevels, len(highs), len(lows))
	}
}

func TestNearLevel(t *testing.T) {
	levels := []float64{1.2000}
	if !nearLevel(1.2025, levels) {
		t.Error("1.2025 is within 0.25% of 1.2000")
	}
	if nearLevel(1.2100, levels) {
		t.Error("1.2100 is not within 0.25% of 1.2000")
	}
	if nearLevel(1.2000, nil) {
		t.Error("no levels means no proximity")
	}
}

func TestBreakoutRetest(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 1.2000
	}
	// Final 20 candles: base range, a breakout above the base extreme in
	// the middle stretch, then a pullback to just above the extreme.
	for i := 35; i < 39; i++ {
		closes[i] = 1.2100
	}
	closes[39] = 1.2010
	candles := candlesFromCloses(closes, 0.0005)

	if !breakoutRetest(candles, model.DirectionLong) {
		t.Error("expected a LONG breakout-and-retest")
	}
	if breakoutRetest(candles, model.DirectionShort) {
		t.Error("no SHORT pattern exists in this fixture")
	}

	// Without the pullback the pattern is incomplete.
	noRetest := make([]float64, 40)
	copy(noRetest, closes)
	noRetest[39] = 1.2100
	if breakoutRetest(candlesFromCloses(noRetest, 0.0005), model.DirectionLong) {
		t.Error("price still at the breakout level is not a retest")
	}

	if breakoutRetest(candles[:10], model.DirectionLong) {
		t.Error("short series cannot contain the pattern")
	}
}
