package indicator

import (
	"math"

	"fxsignals/internal/model"
)

// Trend holds an ADX/DI calculation result.
type Trend struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX returns Wilder's Average Directional Index with the directional
// indicators. Directional movement (+DM/-DM) comes from consecutive
// high/low deltas, smoothed over the window along with true range;
// DX = |+DI − −DI| / (+DI + −DI) * 100 and ADX averages DX over the
// trailing period. ok is false below 2*period candles.
func ADX(candles []model.Candle, period int) (Trend, bool) {
	if period <= 0 || len(candles) < 2*period {
		return Trend{}, false
	}

	n := len(candles) - 1 // per-bar delta series length
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
		tr[i-1] = TrueRange(candles[i], candles[i-1].Close)
	}

	// DX at each position with a full smoothing window behind it.
	di := func(end int) (float64, float64) {
		sumPlus, sumMinus, sumTR := 0.0, 0.0, 0.0
		for i := end - period + 1; i <= end; i++ {
			sumPlus += plusDM[i]
			sumMinus += minusDM[i]
			sumTR += tr[i]
		}
		if sumTR == 0 {
			return 0, 0
		}
		return 100 * sumPlus / sumTR, 100 * sumMinus / sumTR
	}

	dxSum := 0.0
	count := 0
	for end := n - period; end < n; end++ {
		plus, minus := di(end)
		if plus+minus > 0 {
			dxSum += math.Abs(plus-minus) / (plus + minus) * 100
		}
		count++
	}

	plusDI, minusDI := di(n - 1)
	return Trend{
		ADX:     dxSum / float64(count),
		PlusDI:  plusDI,
		MinusDI: minusDI,
	}, true
}
