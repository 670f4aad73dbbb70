package model

import (
	"strings"
	"time"
)

// Direction is the directional call of a signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Outcome is the terminal resolution state of a signal.
// A signal transitions PENDING → exactly one terminal value, once, ever.
type Outcome string

const (
	OutcomePending     Outcome = "PENDING"
	OutcomeTP1Hit      Outcome = "TP1_HIT"
	OutcomeTP2Hit      Outcome = "TP2_HIT"
	OutcomeTP3Hit      Outcome = "TP3_HIT"
	OutcomeStopHit     Outcome = "STOP_HIT"
	OutcomeExpired     Outcome = "EXPIRED"
	OutcomeManualClose Outcome = "MANUALLY_CLOSED"
)

// IsWin reports whether the outcome counts as a winning trade.
func (o Outcome) IsWin() bool {
	return o == OutcomeTP1Hit || o == OutcomeTP2Hit || o == OutcomeTP3Hit
}

// Terminal reports whether the outcome is a terminal state.
func (o Outcome) Terminal() bool {
	return o != OutcomePending && o != ""
}

// Tier classifies a signal by confidence.
type Tier string

const (
	TierHigh   Tier = "HIGH"   // live-tradeable
	TierMedium Tier = "MEDIUM" // paper-only
)

const (
	// ConfidenceMax is the sum of all scoring rule points.
	ConfidenceMax = 126
	// ConfidenceGate is the minimum confidence to emit a signal at all.
	ConfidenceGate = 70
	// ConfidenceHighTier promotes a signal to live-tradeable.
	ConfidenceHighTier = 85

	// SignalTTL is the window a signal stays actionable before expiring.
	SignalTTL = 48 * time.Hour
)

// IndicatorSnapshot freezes the indicator state and the candle windows the
// engine saw at creation time. The backtester replays the recorded candles,
// so this shape must stay stable across resolver/backtester/analyzer readers.
type IndicatorSnapshot struct {
	FastEMA    float64 `json:"fast_ema"`
	SlowEMA    float64 `json:"slow_ema"`
	HTFFastEMA float64 `json:"htf_fast_ema"`
	HTFSlowEMA float64 `json:"htf_slow_ema"`
	RSI        float64 `json:"rsi"`
	ADX        float64 `json:"adx"`
	PlusDI     float64 `json:"plus_di"`
	MinusDI    float64 `json:"minus_di"`
	ATR        float64 `json:"atr"`
	BBMiddle   float64 `json:"bb_middle"`
	BBUpper    float64 `json:"bb_upper"`
	BBLower    float64 `json:"bb_lower"`

	// Recorded candle windows for backtest replay.
	Primary []Candle `json:"primary"`
	Higher  []Candle `json:"higher"`
}

// Signal is the central entity: a directional trade call with a price ladder,
// a confidence score, and (eventually) a resolved outcome.
type Signal struct {
	ID        string    `json:"id"` // globally unique, immutable
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	Entry        float64 `json:"entry"`
	CurrentPrice float64 `json:"current_price"` // display quote at creation
	Stop         float64 `json:"stop"`
	TP1          float64 `json:"tp1"`
	TP2          float64 `json:"tp2"`
	TP3          float64 `json:"tp3"`
	RiskReward   float64 `json:"risk_reward"`

	Confidence  int     `json:"confidence"`
	Tier        Tier    `json:"tier"`
	TradeLive   bool    `json:"trade_live"`
	PositionPct float64 `json:"position_pct"` // 0 for paper-only

	Snapshot  IndicatorSnapshot `json:"snapshot"`
	Rationale []string          `json:"rationale"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Outcome      Outcome   `json:"outcome"`
	OutcomePrice float64   `json:"outcome_price,omitempty"`
	OutcomeTime  time.Time `json:"outcome_time,omitempty"`
	Pips         float64   `json:"pips,omitempty"`
}

// PipSize returns the smallest standard price increment for a pair:
// 0.01 for JPY-quoted pairs, 0.0001 otherwise.
func PipSize(symbol string) float64 {
	if strings.HasSuffix(strings.ReplaceAll(symbol, "/", ""), "JPY") {
		return 0.01
	}
	return 0.0001
}

// PipsResult computes the signed P/L in pips for a trade that entered at
// entry and closed at exitPrice, in the given direction.
func PipsResult(symbol string, dir Direction, entry, exitPrice float64) float64 {
	move := exitPrice - entry
	if dir == DirectionShort {
		move = -move
	}
	return move / PipSize(symbol)
}
