package strategy

import (
	"math"

	"fxsignals/internal/model"
)

const (
	// swingLookaround is how many candles on each side a swing extreme must
	// dominate.
	swingLookaround = 5
	// maxSwingLevels caps how many recent swing levels are retained per side.
	maxSwingLevels = 10
	// srProximity is the relative distance within which price counts as
	// "at" a swing level (~0.25%).
	srProximity = 0.0025
	// retestWindow is the trailing candle count scanned for a
	// breakout-and-retest pattern.
	retestWindow = 20
	// retestProximity is the relative distance for a valid retest (~0.3%).
	retestProximity = 0.003
)

// swingLevels returns detected swing highs and lows, most recent last,
// capped at maxSwingLevels each. A candle at index i is a swing high when
// its high is >= every high within swingLookaround candles on both sides
// (swing lows symmetric on lows).
func swingLevels(candles []model.Candle) (highs, lows []float64) {
	for i := swingLookaround; i < len(candles)-swingLookaround; i++ {
		isHigh, isLow := true, true
		for j := i - swingLookaround; j <= i+swingLookaround; j++ {
			if j == i {
				continue
			}
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, candles[i].High)
		}
		if isLow {
			lows = append(lows, candles[i].Low)
		}
	}
	if len(highs) > maxSwingLevels {
		highs = highs[len(highs)-maxSwingLevels:]
	}
	if len(lows) > maxSwingLevels {
		lows = lows[len(lows)-maxSwingLevels:]
	}
	return highs, lows
}

// nearLevel reports whether price sits within srProximity of any level.
func nearLevel(price float64, levels []float64) bool {
	for _, lvl := range levels {
		if lvl == 0 {
			continue
		}
		if math.Abs(price-lvl)/lvl <= srProximity {
			return true
		}
	}
	return false
}

// breakoutRetest detects a breakout-and-retest over the trailing
// retestWindow candles: price closed beyond a prior extreme (taken from the
// first 15 of those 20) somewhere in the middle stretch, then pulled back to
// within retestProximity of that extreme by the latest candle.
func breakoutRetest(candles []model.Candle, dir model.Direction) bool {
	if len(candles) < retestWindow {
		return false
	}
	window := candles[len(candles)-retestWindow:]
	base := window[:15]

	extreme := base[0].High
	if dir == model.DirectionShort {
		extreme = base[0].Low
	}
	for _, c := range base {
		if dir == model.DirectionLong && c.High > extreme {
			extreme = c.High
		}
		if dir == model.DirectionShort && c.Low < extreme {
			extreme = c.Low
		}
	}
	if extreme == 0 {
		return false
	}

	broke := false
	for _, c := range window[15 : retestWindow-1] {
		if dir == model.DirectionLong && c.Close > extreme {
			broke = true
		}
		if dir == model.DirectionShort && c.Close < extreme {
			broke = true
		}
	}
	if !broke {
		return false
	}

	last := window[retestWindow-1].Close
	return math.Abs(last-extreme)/extreme <= retestProximity
}
