// Package resolver determines terminal outcomes for pending signals by
// scanning candles that closed after signal creation.
//
// Resolution uses OHLC extrema, not closes: a take-profit or stop counts as
// touched when any candle's high/low reaches it. When one candle touches
// both levels the stop is assumed to have been hit first — a deliberate,
// conservative tie-break policy.
//
// The resolver is safe to invoke repeatedly: it only reads PENDING signals
// and the store only ever transitions a signal out of PENDING once, so a
// re-run against resolved signals (or before any new candle has closed) is
// a no-op.
package resolver

import (
	"context"
	"fmt"
	"log"
	"time"

	"fxsignals/internal/model"
)

// maxScanCandles caps a single lifetime fetch; 48h of hourly candles plus
// margin fits comfortably.
const maxScanCandles = 120

// Resolver scans pending signals against fresh candles.
type Resolver struct {
	store    model.SignalStore
	source   model.CandleSource
	interval model.Interval
	now      func() time.Time

	// onResolved, when set, fires after a successful terminal transition.
	onResolved func(sig model.Signal, outcome model.Outcome, price, pips float64)
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithResolvedCallback registers a hook invoked once per resolution.
func WithResolvedCallback(fn func(sig model.Signal, outcome model.Outcome, price, pips float64)) Option {
	return func(r *Resolver) { r.onResolved = fn }
}

// New creates a Resolver reading pending signals from store and candles
// from source at the given interval.
func New(store model.SignalStore, source model.CandleSource, interval model.Interval, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		source:   source,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats summarizes one resolver pass.
type Stats struct {
	Scanned  int
	Resolved int
	Expired  int
	Skipped  int // symbols skipped on fetch failure
}

// Run performs one resolution pass over all pending signals.
func (r *Resolver) Run(ctx context.Context) (Stats, error) {
	pending, err := r.store.GetPending(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load pending signals: %w", err)
	}

	var stats Stats
	now := r.now().UTC()

	for i := range pending {
		sig := pending[i]
		stats.Scanned++

		if now.After(sig.ExpiresAt) {
			if err := r.expire(ctx, sig, now); err != nil {
				log.Printf("[resolver] %s: expire failed: %v", sig.ID, err)
				stats.Skipped++
				continue
			}
			stats.Expired++
			continue
		}

		candles, err := r.fetchSince(ctx, sig.Symbol, sig.CreatedAt, now)
		if err != nil {
			// External-source failure: skip this signal, never the run.
			log.Printf("[resolver] %s: candle fetch failed: %v", sig.ID, err)
			stats.Skipped++
			continue
		}

		outcome, price, at, ok := scan(sig, candles)
		if !ok {
			continue // no level touched yet
		}

		pips := model.PipsResult(sig.Symbol, sig.Direction, sig.Entry, price)
		if err := r.store.Resolve(ctx, sig.ID, outcome, price, at, pips); err != nil {
			log.Printf("[resolver] %s: resolve failed: %v", sig.ID, err)
			stats.Skipped++
			continue
		}
		stats.Resolved++
		log.Printf("[resolver] %s %s resolved %s at %.5f (%.1f pips)",
			sig.Symbol, sig.Direction, outcome, price, pips)
		if r.onResolved != nil {
			r.onResolved(sig, outcome, price, pips)
		}
	}

	return stats, nil
}

// scan walks candles in chronological order and returns the first terminal
// outcome, if any. Candles opened before signal creation are ignored.
func scan(sig model.Signal, candles []model.Candle) (model.Outcome, float64, time.Time, bool) {
	long := sig.Direction == model.DirectionLong

	for _, c := range candles {
		if c.OpenTime.Before(sig.CreatedAt) {
			continue
		}

		var tpTouch, slTouch bool
		if long {
			tpTouch = c.High >= sig.TP1
			slTouch = c.Low <= sig.Stop
		} else {
			tpTouch = c.Low <= sig.TP1
			slTouch = c.High >= sig.Stop
		}

		switch {
		case tpTouch && slTouch:
			// Ambiguous candle: assume the stop was touched first intrabar.
			return model.OutcomeStopHit, sig.Stop, c.OpenTime, true
		case slTouch:
			return model.OutcomeStopHit, sig.Stop, c.OpenTime, true
		case tpTouch:
			return model.OutcomeTP1Hit, sig.TP1, c.OpenTime, true
		}
	}
	return "", 0, time.Time{}, false
}

// expire marks a signal EXPIRED and fetches its lifetime candle window so
// the stored record can still be charted later. The fetch is best-effort:
// expiry proceeds even when the provider is down.
func (r *Resolver) expire(ctx context.Context, sig model.Signal, now time.Time) error {
	price := sig.Entry
	if candles, err := r.fetchSince(ctx, sig.Symbol, sig.CreatedAt, now); err != nil {
		log.Printf("[resolver] %s: lifetime window fetch failed: %v", sig.ID, err)
	} else if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}

	pips := model.PipsResult(sig.Symbol, sig.Direction, sig.Entry, price)
	if err := r.store.Resolve(ctx, sig.ID, model.OutcomeExpired, price, now, pips); err != nil {
		return err
	}
	log.Printf("[resolver] %s %s expired at %.5f (%.1f pips mark-out)",
		sig.Symbol, sig.Direction, price, pips)
	if r.onResolved != nil {
		r.onResolved(sig, model.OutcomeExpired, price, pips)
	}
	return nil
}

// ManualClose applies the alternate terminal transition for an operator-
// initiated close at the supplied price. Closing a signal that is no longer
// pending returns an error.
func (r *Resolver) ManualClose(ctx context.Context, id string, price float64) error {
	pending, err := r.store.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending signals: %w", err)
	}
	for i := range pending {
		sig := pending[i]
		if sig.ID != id {
			continue
		}
		now := r.now().UTC()
		pips := model.PipsResult(sig.Symbol, sig.Direction, sig.Entry, price)
		if err := r.store.Resolve(ctx, id, model.OutcomeManualClose, price, now, pips); err != nil {
			return fmt.Errorf("manual close %s: %w", id, err)
		}
		log.Printf("[resolver] %s manually closed at %.5f (%.1f pips)", id, price, pips)
		if r.onResolved != nil {
			r.onResolved(sig, model.OutcomeManualClose, price, pips)
		}
		return nil
	}
	return fmt.Errorf("manual close %s: signal not pending", id)
}

// fetchSince pulls enough candles to cover the window from `since` to now.
func (r *Resolver) fetchSince(ctx context.Context, symbol string, since, now time.Time) ([]model.Candle, error) {
	count := int(now.Sub(since).Hours()) + 2
	if count > maxScanCandles {
		count = maxScanCandles
	}
	if count < 2 {
		count = 2
	}
	return r.source.FetchCandles(ctx, symbol, r.interval, count)
}
