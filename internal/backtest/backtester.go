// Package backtest replays historical signals under candidate parameter
// grids and recommends better configurations.
//
// The backtester reads history only: it replays each signal's recorded
// candle snapshot through the strategy engine's detection logic and tallies
// the already-known outcomes. It never mutates signal records.
package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"fxsignals/internal/model"
	"fxsignals/internal/strategy"
)

const (
	// MinCompletedSignals is the history floor below which a symbol is not
	// backtested at all.
	MinCompletedSignals = 30
	// MinMatchingSample is the floor of replayed-and-direction-matching
	// signals for a combination to be eligible as "best".
	MinMatchingSample = 20
	// MinImprovementPts is the win-rate improvement, in percentage points,
	// a best combination must exceed before a recommendation is recorded.
	MinImprovementPts = 5.0
)

// grid is the fixed candidate space: 3 EMA period pairs × 3 ATR stop
// multipliers.
var (
	emaPairs = [][2]int{{12, 26}, {20, 50}, {30, 70}}
	atrMults = []float64{1.5, 2.0, 2.5}
)

// Grid enumerates every candidate parameter combination.
func Grid() []model.StrategyParameters {
	out := make([]model.StrategyParameters, 0, len(emaPairs)*len(atrMults))
	for _, pair := range emaPairs {
		for _, mult := range atrMults {
			out = append(out, model.StrategyParameters{
				FastPeriod:        pair[0],
				SlowPeriod:        pair[1],
				ATRStopMultiplier: mult,
			})
		}
	}
	return out
}

// Backtester evaluates parameter grids against recorded signal history.
type Backtester struct {
	store  model.SignalStore
	params model.ParameterSource // current parameters, for the delta; may be nil
	sink   model.RecommendationSink
	now    func() time.Time
}

// Option customizes a Backtester.
type Option func(*Backtester)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(b *Backtester) { b.now = now }
}

// New creates a Backtester.
func New(store model.SignalStore, params model.ParameterSource, sink model.RecommendationSink, opts ...Option) *Backtester {
	b := &Backtester{
		store:  store,
		params: params,
		sink:   sink,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// comboResult tallies one grid combination.
type comboResult struct {
	params   model.StrategyParameters
	matching int
	wins     int
}

func (c comboResult) winRate() float64 {
	if c.matching == 0 {
		return 0
	}
	return float64(c.wins) / float64(c.matching)
}

// RunSymbol backtests one symbol. Returns the recorded recommendation, or
// nil when the symbol has too little history, no eligible combination, or
// no combination beats the realized baseline by more than the threshold.
func (b *Backtester) RunSymbol(ctx context.Context, symbol string) (*model.BacktestRecommendation, error) {
	completed, err := b.store.ListCompleted(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list completed for %s: %w", symbol, err)
	}
	if len(completed) < MinCompletedSignals {
		log.Printf("[backtest] %s: only %d completed signals, need %d", symbol, len(completed), MinCompletedSignals)
		return nil, nil
	}

	baselineWins := 0
	for i := range completed {
		if completed[i].Outcome.IsWin() {
			baselineWins++
		}
	}
	baseline := float64(baselineWins) / float64(len(completed))

	var best *comboResult
	for _, candidate := range Grid() {
		result := replay(completed, candidate)
		if result.matching < MinMatchingSample {
			continue
		}
		if best == nil || result.winRate() > best.winRate() {
			r := result
			best = &r
		}
	}
	if best == nil {
		log.Printf("[backtest] %s: no combination reached %d matching signals", symbol, MinMatchingSample)
		return nil, nil
	}

	improvement := (best.winRate() - baseline) * 100
	if improvement <= MinImprovementPts {
		log.Printf("[backtest] %s: best improvement %.1fpp below threshold", symbol, improvement)
		return nil, nil
	}

	rec := &model.BacktestRecommendation{
		Symbol:           symbol,
		Current:          b.currentParams(ctx, symbol),
		Proposed:         best.params,
		SampleSize:       best.matching,
		BaselineWinRate:  baseline,
		ProjectedWinRate: best.winRate(),
		Improvement:      improvement,
		Status:           model.RecommendationPending,
		CreatedAt:        b.now().UTC(),
	}
	if err := b.sink.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("record recommendation for %s: %w", symbol, err)
	}
	log.Printf("[backtest] %s: recommending fast=%d slow=%d atr=%.1f (+%.1fpp over %.1f%%, n=%d)",
		symbol, rec.Proposed.FastPeriod, rec.Proposed.SlowPeriod, rec.Proposed.ATRStopMultiplier,
		improvement, baseline*100, best.matching)
	return rec, nil
}

// Run backtests every symbol, skipping (and logging) per-symbol failures.
// Returns the number of recommendations recorded.
func (b *Backtester) Run(ctx context.Context, symbols []string) (int, error) {
	recorded := 0
	for _, symbol := range symbols {
		rec, err := b.RunSymbol(ctx, symbol)
		if err != nil {
			log.Printf("[backtest] %s: %v", symbol, err)
			continue
		}
		if rec != nil {
			recorded++
		}
	}
	return recorded, nil
}

// replay runs the candidate parameters over every signal's recorded candle
// snapshot, keeping only signals whose replayed direction matches the
// original call. A win is a signal whose actual outcome was a TP hit.
func replay(signals []model.Signal, candidate model.StrategyParameters) comboResult {
	result := comboResult{params: candidate}
	for i := range signals {
		sig := &signals[i]
		if len(sig.Snapshot.Primary) == 0 || len(sig.Snapshot.Higher) == 0 {
			continue // pre-snapshot record, cannot replay
		}
		dir, ok := strategy.DetectDirection(sig.Snapshot.Primary, sig.Snapshot.Higher, candidate)
		if !ok || dir != sig.Direction {
			continue
		}
		result.matching++
		if sig.Outcome.IsWin() {
			result.wins++
		}
	}
	return result
}

func (b *Backtester) currentParams(ctx context.Context, symbol string) model.StrategyParameters {
	if b.params != nil {
		if p, err := b.params.GetApprovedParameters(ctx, symbol); err == nil && p != nil {
			return *p
		}
	}
	return model.DefaultParameters()
}
