package model

import "time"

// Condition identifies an indicator-condition bucket tracked by the
// adaptive weighting analyzer.
type Condition string

const (
	ConditionRSIFavorable  Condition = "rsi_favorable" // RSI 40-70 long / 30-60 short
	ConditionRSIOverbought Condition = "rsi_overbought"
	ConditionRSIOversold   Condition = "rsi_oversold"
	ConditionADXStrong     Condition = "adx_strong" // ADX > 25
	ConditionADXWeak       Condition = "adx_weak"   // ADX < 20
)

// AllConditions lists every tracked bucket in a stable order.
var AllConditions = []Condition{
	ConditionRSIFavorable,
	ConditionRSIOverbought,
	ConditionRSIOversold,
	ConditionADXStrong,
	ConditionADXWeak,
}

// ConditionStat is the historical performance of one condition bucket.
type ConditionStat struct {
	Samples int     `json:"samples"`
	WinRate float64 `json:"win_rate"` // 0..1, meaningless when Samples == 0
	Weight  int     `json:"weight"`   // advisory, 0-25
}

// SymbolInsights is the per-symbol aggregate produced by the analyzer.
// Weights are advisory only: they are not consumed by live confidence
// scoring (see WeightProvider).
type SymbolInsights struct {
	Symbol        string                      `json:"symbol"`
	Completed     int                         `json:"completed"`
	WinRate       float64                     `json:"win_rate"`
	LongWinRate   float64                     `json:"long_win_rate"`
	ShortWinRate  float64                     `json:"short_win_rate"`
	Conditions    map[Condition]ConditionStat `json:"conditions"`
	HasEnoughData bool                        `json:"has_enough_data"`
	ComputedAt    time.Time                   `json:"computed_at"`
}

// DefaultConditionWeights is the fixed weight set returned when a symbol has
// too little history to analyze.
var DefaultConditionWeights = map[Condition]int{
	ConditionRSIFavorable:  15,
	ConditionRSIOverbought: 5,
	ConditionRSIOversold:   5,
	ConditionADXStrong:     15,
	ConditionADXWeak:       5,
}
