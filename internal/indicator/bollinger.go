package indicator

// Bands holds a Bollinger Band calculation result.
type Bands struct {
	Middle    float64
	Upper     float64
	Lower     float64
	Bandwidth float64 // (upper - lower) / middle
}

// Bollinger returns Bollinger Bands over the last period closes:
// middle = SMA, upper/lower = middle ± stdDev*mult. ok is false when the
// series is shorter than period.
func Bollinger(closes []float64, period int, mult float64) (Bands, bool) {
	if period <= 0 || len(closes) < period {
		return Bands{}, false
	}

	window := closes[len(closes)-period:]
	middle := mean(window)
	sd := stdDev(window)

	b := Bands{
		Middle: middle,
		Upper:  middle + sd*mult,
		Lower:  middle - sd*mult,
	}
	if middle != 0 {
		b.Bandwidth = (2 * sd * mult) / middle
	}
	return b, true
}
