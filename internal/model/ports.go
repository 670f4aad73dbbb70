package model

import (
	"context"
	"time"
)

// ── Boundary Port Interfaces ──
// These interfaces decouple the pipeline from concrete collaborators
// (market-data provider, SQLite, Redis). Each implementation satisfies one
// or more of these interfaces.

// Quote is a display mid-rate for a pair.
type Quote struct {
	Symbol  string  `json:"symbol"`
	MidRate float64 `json:"mid_rate"`
}

// CandleSource fetches historical candles from the upstream provider.
type CandleSource interface {
	// FetchCandles returns up to count candles for symbol at the given
	// interval, ordered oldest first. Rate-limit failures are surfaced as
	// errors matching fxapi.ErrRateLimited so callers can back off.
	FetchCandles(ctx context.Context, symbol string, interval Interval, count int) ([]Candle, error)
}

// QuoteSource fetches current mid rates, used only to annotate signals with
// a display price.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error)
}

// SignalStore persists and retrieves signal records. Implementations must
// enforce at-most-once creation per signal ID and one-way outcome
// transitions out of PENDING.
type SignalStore interface {
	// CreateIfAbsent inserts the signal unless its ID already exists.
	// A duplicate insert is a silent no-op, not an error.
	CreateIfAbsent(ctx context.Context, sig *Signal) error

	// GetPending returns all signals still awaiting an outcome.
	GetPending(ctx context.Context) ([]Signal, error)

	// Resolve sets the terminal outcome for a pending signal. Resolving an
	// already-resolved signal is a no-op.
	Resolve(ctx context.Context, id string, outcome Outcome, price float64, at time.Time, pips float64) error

	// ListCompleted returns all non-pending signals for a symbol.
	ListCompleted(ctx context.Context, symbol string) ([]Signal, error)
}

// ParameterSource supplies approved strategy parameters per symbol.
// A nil result means "use built-in defaults".
type ParameterSource interface {
	GetApprovedParameters(ctx context.Context, symbol string) (*StrategyParameters, error)
}

// RecommendationSink records backtest recommendations for later approval.
type RecommendationSink interface {
	Record(ctx context.Context, rec *BacktestRecommendation) error
}

// WeightProvider exposes advisory per-condition weights to the strategy
// engine. The engine may consult these but does not currently feed them into
// live confidence scoring; this is a deliberate seam pending a product
// decision.
type WeightProvider interface {
	Weights(ctx context.Context, symbol string) (map[Condition]int, error)
}
