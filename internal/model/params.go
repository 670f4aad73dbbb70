package model

// StrategyParameters is the tunable knob set for the strategy engine.
// Treated as a value object: either the built-in default or an approved
// per-symbol override fetched fresh (with short-lived caching) each cycle.
type StrategyParameters struct {
	FastPeriod        int     `json:"fast_period"`
	SlowPeriod        int     `json:"slow_period"`
	ATRStopMultiplier float64 `json:"atr_stop_multiplier"`
	Version           int     `json:"version"`
}

// DefaultParameters returns the built-in parameter set used when no approved
// override exists for a symbol, or when the parameter source fails.
func DefaultParameters() StrategyParameters {
	return StrategyParameters{
		FastPeriod:        20,
		SlowPeriod:        50,
		ATRStopMultiplier: 2.0,
		Version:           0,
	}
}

// Valid reports whether the parameter set is usable by the engine.
func (p StrategyParameters) Valid() bool {
	return p.FastPeriod > 0 && p.SlowPeriod > p.FastPeriod && p.ATRStopMultiplier > 0
}
