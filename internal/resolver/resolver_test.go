package resolver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fxsignals/internal/model"
)

var (
	baseTime = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	runTime  = baseTime.Add(6 * time.Hour)
)

// fakeStore is an in-memory SignalStore honoring the one-way transition
// invariant: Resolve only applies to signals still pending.
type fakeStore struct {
	signals      map[string]*model.Signal
	resolveCalls int
}

func newFakeStore(sigs ...*model.Signal) *fakeStore {
	s := &fakeStore{signals: make(map[string]*model.Signal)}
	for _, sig := range sigs {
		s.signals[sig.ID] = sig
	}
	return s
}

func (s *fakeStore) CreateIfAbsent(ctx context.Context, sig *model.Signal) error {
	if _, exists := s.signals[sig.ID]; !exists {
		s.signals[sig.ID] = sig
	}
	return nil
}

func (s *fakeStore) GetPending(ctx context.Context) ([]model.Signal, error) {
	var out []model.Signal
	for _, sig := range s.signals {
		if sig.Outcome == model.OutcomePending {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (s *fakeStore) Resolve(ctx context.Context, id string, outcome model.Outcome, price float64, at time.Time, pips float64) error {
	sig, ok := s.signals[id]
	if !ok || sig.Outcome != model.OutcomePending {
		return nil // no-op, matching the store contract
	}
	s.resolveCalls++
	sig.Outcome = outcome
	sig.OutcomePrice = price
	sig.OutcomeTime = at
	sig.Pips = pips
	return nil
}

func (s *fakeStore) ListCompleted(ctx context.Context, symbol string) ([]model.Signal, error) {
	var out []model.Signal
	for _, sig := range s.signals {
		if sig.Symbol == symbol && sig.Outcome.Terminal() {
			out = append(out, *sig)
		}
	}
	return out, nil
}

// fakeSource serves a fixed candle window per symbol.
type fakeSource struct {
	candles map[string][]model.Candle
	err     error
	calls   int
}

func (f *fakeSource) FetchCandles(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[symbol], nil
}

func pendingLong(id string) *model.Signal {
	return &model.Signal{
		ID:        id,
		Symbol:    "EUR/USD",
		Direction: model.DirectionLong,
		Entry:     1.1000,
		Stop:      1.0950,
		TP1:       1.1075,
		TP2:       1.1125,
		TP3:       1.1200,
		CreatedAt: baseTime,
		ExpiresAt: baseTime.Add(model.SignalTTL),
		Outcome:   model.OutcomePending,
	}
}

func candleAt(offset time.Duration, high, low float64) model.Candle {
	mid := (high + low) / 2
	return model.Candle{
		OpenTime: baseTime.Add(offset),
		Open:     mid,
		High:     high,
		Low:      low,
		Close:    mid,
	}
}

func newTestResolver(store *fakeStore, source *fakeSource, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return runTime })}, opts...)
	return New(store, source, model.Interval1H, opts...)
}

func TestAmbiguousCandleResolvesStopFirst(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		// One candle touches both tp1 (1.1075) and stop (1.0950).
		"EUR/USD": {candleAt(time.Hour, 1.1080, 1.0945)},
	}}

	stats, err := newTestResolver(store, source).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Resolved != 1 {
		t.Fatalf("resolved = %d, want 1", stats.Resolved)
	}
	if sig.Outcome != model.OutcomeStopHit {
		t.Errorf("outcome = %s, want STOP_HIT (conservative tie-break)", sig.Outcome)
	}
	if sig.OutcomePrice != 1.0950 {
		t.Errorf("outcome price = %v, want the stop 1.0950", sig.OutcomePrice)
	}
	if math.Abs(sig.Pips-(-50.0)) > 1e-9 {
		t.Errorf("pips = %v, want -50.0", sig.Pips)
	}
}

func TestTakeProfitOnly(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		"EUR/USD": {
			candleAt(time.Hour, 1.1040, 1.0990),   // touches nothing
			candleAt(2*time.Hour, 1.1080, 1.1020), // touches tp1 only
		},
	}}

	if _, err := newTestResolver(store, source).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig.Outcome != model.OutcomeTP1Hit {
		t.Fatalf("outcome = %s, want TP1_HIT", sig.Outcome)
	}
	if sig.OutcomePrice != 1.1075 {
		t.Errorf("outcome price = %v, want tp1", sig.OutcomePrice)
	}
	if math.Abs(sig.Pips-75.0) > 1e-9 {
		t.Errorf("pips = %v, want +75.0", sig.Pips)
	}
	if !sig.OutcomeTime.Equal(baseTime.Add(2 * time.Hour)) {
		t.Errorf("outcome time = %v, want the resolving candle's open time", sig.OutcomeTime)
	}
}

func TestShortDirectionMirrors(t *testing.T) {
	sig := &model.Signal{
		ID:        "s2",
		Symbol:    "USD/JPY",
		Direction: model.DirectionShort,
		Entry:     150.00,
		Stop:      150.60,
		TP1:       149.10,
		CreatedAt: baseTime,
		ExpiresAt: baseTime.Add(model.SignalTTL),
		Outcome:   model.OutcomePending,
	}
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		"USD/JPY": {candleAt(time.Hour, 149.50, 149.05)}, // low breaches tp1
	}}

	if _, err := newTestResolver(store, source).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig.Outcome != model.OutcomeTP1Hit {
		t.Fatalf("outcome = %s, want TP1_HIT", sig.Outcome)
	}
	// Short win on a JPY pair: (150.00 - 149.10) / 0.01 = 90 pips.
	if math.Abs(sig.Pips-90.0) > 1e-9 {
		t.Errorf("pips = %v, want +90.0", sig.Pips)
	}
}

func TestResolverIdempotent(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		"EUR/USD": {candleAt(time.Hour, 1.1080, 1.1020)},
	}}

	var callbacks int
	r := newTestResolver(store, source, WithResolvedCallback(
		func(model.Signal, model.Outcome, float64, float64) { callbacks++ }))

	for i := 0; i < 2; i++ {
		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if store.resolveCalls != 1 {
		t.Errorf("resolve fired %d times, want exactly once", store.resolveCalls)
	}
	if callbacks != 1 {
		t.Errorf("callback fired %d times, want exactly once", callbacks)
	}
	if sig.Outcome != model.OutcomeTP1Hit {
		t.Errorf("outcome = %s, want TP1_HIT", sig.Outcome)
	}
}

func TestNoNewCandlesIsNoOp(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{"EUR/USD": nil}}

	stats, err := newTestResolver(store, source).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Resolved != 0 || sig.Outcome != model.OutcomePending {
		t.Errorf("expected the signal to stay pending, got %s", sig.Outcome)
	}
}

func TestCandlesBeforeCreationIgnored(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		// This candle would hit the stop, but it predates the signal.
		"EUR/USD": {candleAt(-2*time.Hour, 1.1010, 1.0940)},
	}}

	if _, err := newTestResolver(store, source).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig.Outcome != model.OutcomePending {
		t.Errorf("pre-creation candle must not resolve, got %s", sig.Outcome)
	}
}

func TestExpiredSignalMarkedExpired(t *testing.T) {
	sig := pendingLong("s1")
	sig.ExpiresAt = runTime.Add(-time.Hour)
	store := newFakeStore(sig)
	source := &fakeSource{candles: map[string][]model.Candle{
		// No TP/SL touch in the lifetime window.
		"EUR/USD": {candleAt(time.Hour, 1.1030, 1.0990)},
	}}

	stats, err := newTestResolver(store, source).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Expired != 1 {
		t.Fatalf("expired = %d, want 1", stats.Expired)
	}
	if sig.Outcome != model.OutcomeExpired {
		t.Errorf("outcome = %s, want EXPIRED", sig.Outcome)
	}
}

func TestFetchFailureSkipsSignalNotRun(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{err: errors.New("provider down")}

	stats, err := newTestResolver(store, source).Run(context.Background())
	if err != nil {
		t.Fatalf("fetch failures must not fail the run: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if sig.Outcome != model.OutcomePending {
		t.Errorf("signal must stay pending on fetch failure, got %s", sig.Outcome)
	}
}

func TestManualClose(t *testing.T) {
	sig := pendingLong("s1")
	store := newFakeStore(sig)
	source := &fakeSource{}
	r := newTestResolver(store, source)

	if err := r.ManualClose(context.Background(), "s1", 1.1030); err != nil {
		t.Fatalf("manual close: %v", err)
	}
	if sig.Outcome != model.OutcomeManualClose {
		t.Errorf("outcome = %s, want MANUALLY_CLOSED", sig.Outcome)
	}
	if math.Abs(sig.Pips-30.0) > 1e-9 {
		t.Errorf("pips = %v, want +30.0", sig.Pips)
	}

	// Closing again, or closing an unknown signal, errors.
	if err := r.ManualClose(context.Background(), "s1", 1.1050); err == nil {
		t.Error("closing a non-pending signal should error")
	}
	if err := r.ManualClose(context.Background(), "nope", 1.0); err == nil {
		t.Error("closing an unknown signal should error")
	}
}
