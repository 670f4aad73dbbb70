package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fxsignals/internal/model"
	"fxsignals/internal/notification"
	"fxsignals/internal/provider"
	"fxsignals/internal/provider/fxapi"
	"fxsignals/internal/strategy"
)

// marketOpen is a fixed Wednesday morning, well inside trading hours.
var marketOpen = time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func candlesFromCloses(closes []float64, spread float64) []model.Candle {
	candles := make([]model.Candle, len(closes))
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = model.Candle{
			OpenTime: ts.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c + spread,
			Low:      c - spread,
			Close:    c,
			Volume:   1000,
		}
	}
	return candles
}

// trendingSeries builds a LONG-biased primary/higher pair that the engine
// turns into a signal.
func trendingSeries() (primary, higher []model.Candle) {
	closes := make([]float64, 0, 250)
	price := 1.1000
	for i := 0; i < 235; i++ {
		closes = append(closes, price)
		price += 0.0004
	}
	price = closes[len(closes)-1] - 0.0001
	for i := 0; i < 15; i++ {
		closes = append(closes, price)
		price -= 0.0001
	}
	primary = candlesFromCloses(closes, 0.0005)

	h := make([]float64, 120)
	for i := range h {
		h[i] = 1.0800 + float64(i)*0.0009
	}
	higher = candlesFromCloses(h, 0.0008)
	return primary, higher
}

// flatSeries detects nothing.
func flatSeries() (primary, higher []model.Candle) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 1.2000
	}
	h := make([]float64, 120)
	for i := range h {
		h[i] = 1.2000
	}
	return candlesFromCloses(closes, 0.0005), candlesFromCloses(h, 0.0008)
}

type fakeCandleSource struct {
	mu      sync.Mutex
	fetches int
	// per-symbol behavior
	trending map[string]bool
	failWith map[string]error
}

func (f *fakeCandleSource) FetchCandles(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.Candle, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()

	if err, ok := f.failWith[symbol]; ok {
		return nil, err
	}
	var primary, higher []model.Candle
	if f.trending[symbol] {
		primary, higher = trendingSeries()
	} else {
		primary, higher = flatSeries()
	}
	if interval == model.Interval4H {
		return higher, nil
	}
	return primary, nil
}

type fakeQuoteSource struct {
	quotes []model.Quote
	err    error
	calls  int
}

func (f *fakeQuoteSource) FetchQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	f.calls++
	return f.quotes, f.err
}

type memorySignalStore struct {
	mu      sync.Mutex
	signals map[string]*model.Signal
	creates int
}

func newMemorySignalStore() *memorySignalStore {
	return &memorySignalStore{signals: make(map[string]*model.Signal)}
}

func (s *memorySignalStore) CreateIfAbsent(ctx context.Context, sig *model.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if _, ok := s.signals[sig.ID]; ok {
		return nil
	}
	cp := *sig
	s.signals[sig.ID] = &cp
	return nil
}

func (s *memorySignalStore) GetPending(ctx context.Context) ([]model.Signal, error) {
	return nil, nil
}

func (s *memorySignalStore) Resolve(ctx context.Context, id string, outcome model.Outcome, price float64, at time.Time, pips float64) error {
	return nil
}

func (s *memorySignalStore) ListCompleted(ctx context.Context, symbol string) ([]model.Signal, error) {
	return nil, nil
}

type fixedParams struct {
	params *model.StrategyParameters
	err    error
}

func (p *fixedParams) GetApprovedParameters(ctx context.Context, symbol string) (*model.StrategyParameters, error) {
	return p.params, p.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Alert
}

func (n *recordingNotifier) Send(ctx context.Context, alert notification.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, alert)
	return nil
}

func newTestGenerator(symbols []string, source *fakeCandleSource, quotes *fakeQuoteSource,
	store *memorySignalStore, notifier *recordingNotifier, clock time.Time) *Generator {
	engine := strategy.NewEngine(
		strategy.WithClock(fixedClock(clock)),
		strategy.WithIDGenerator(func(symbol string, ts time.Time) string { return "sig-" + symbol }),
	)
	opts := []Option{WithClock(fixedClock(clock))}
	if notifier != nil {
		opts = append(opts, WithNotifier(notifier))
	}
	return New(symbols, source, quotes, store, engine, &fixedParams{}, provider.NewPacer(0), opts...)
}

func TestRunCreatesAndAnnotatesSignal(t *testing.T) {
	source := &fakeCandleSource{trending: map[string]bool{"EUR/USD": true}}
	quotes := &fakeQuoteSource{quotes: []model.Quote{{Symbol: "EUR/USD", MidRate: 1.1950}}}
	store := newMemorySignalStore()
	notifier := &recordingNotifier{}

	gen := newTestGenerator([]string{"EUR/USD", "GBP/USD"}, source, quotes, store, notifier, marketOpen)
	stats, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Analyzed != 2 || stats.Created != 1 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v, want 2 analyzed, 1 created, 0 skipped", stats)
	}

	sig, ok := store.signals["sig-EUR/USD"]
	if !ok {
		t.Fatal("signal not persisted")
	}
	if sig.CurrentPrice != 1.1950 {
		t.Errorf("current price = %v, want annotated quote 1.1950", sig.CurrentPrice)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("alerts sent = %d, want 1", len(notifier.sent))
	}
	if quotes.calls != 1 {
		t.Errorf("quote fetches = %d, want exactly 1 per cycle", quotes.calls)
	}
}

func TestRunIsNoOpWhenMarketClosed(t *testing.T) {
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
	source := &fakeCandleSource{trending: map[string]bool{"EUR/USD": true}}
	store := newMemorySignalStore()

	gen := newTestGenerator([]string{"EUR/USD"}, source, &fakeQuoteSource{}, store, nil, saturday)
	stats, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Analyzed != 0 || stats.Created != 0 {
		t.Errorf("closed market must analyze nothing, got %+v", stats)
	}
	if source.fetches != 0 {
		t.Errorf("closed market must not call the provider, got %d fetches", source.fetches)
	}
}

func TestRunSkipsRateLimitedSymbolAndContinues(t *testing.T) {
	source := &fakeCandleSource{
		trending: map[string]bool{"GBP/USD": true},
		failWith: map[string]error{"EUR/USD": fxapi.ErrRateLimited},
	}
	store := newMemorySignalStore()

	gen := newTestGenerator([]string{"EUR/USD", "GBP/USD"}, source, &fakeQuoteSource{}, store, nil, marketOpen)
	stats, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if stats.Created != 1 {
		t.Errorf("created = %d, want 1 (later symbols must still run)", stats.Created)
	}
	if _, ok := store.signals["sig-GBP/USD"]; !ok {
		t.Error("GBP/USD signal should have been created after the rate-limited skip")
	}
}

func TestRunRepeatedCycleCreatesNoDuplicate(t *testing.T) {
	source := &fakeCandleSource{trending: map[string]bool{"EUR/USD": true}}
	store := newMemorySignalStore()
	notifier := &recordingNotifier{}

	gen := newTestGenerator([]string{"EUR/USD"}, source, &fakeQuoteSource{}, store, notifier, marketOpen)
	ctx := context.Background()
	if _, err := gen.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := gen.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(store.signals) != 1 {
		t.Errorf("stored signals = %d, want 1 (same ID must not duplicate)", len(store.signals))
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	source := &fakeCandleSource{trending: map[string]bool{"EUR/USD": true}}
	store := newMemorySignalStore()

	gen := newTestGenerator([]string{"EUR/USD"}, source, &fakeQuoteSource{}, store, nil, marketOpen)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled run error = %v, want context.Canceled", err)
	}
}

func TestCachedParametersServesOverride(t *testing.T) {
	override := &model.StrategyParameters{FastPeriod: 12, SlowPeriod: 26, ATRStopMultiplier: 1.5}
	cached := NewCachedParameters(&fixedParams{params: override}, time.Minute)

	got, err := cached.GetApprovedParameters(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.FastPeriod != 12 {
		t.Fatalf("override not served: %+v", got)
	}
}

func TestCachedParametersFallsBackOnStoreFailure(t *testing.T) {
	cached := NewCachedParameters(&fixedParams{err: errors.New("db locked")}, time.Minute)

	got, err := cached.GetApprovedParameters(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("store failure must not surface an error, got %v", err)
	}
	if got != nil {
		t.Errorf("store failure must fall back to defaults (nil), got %+v", got)
	}
}

type countingParams struct {
	calls int
}

func (p *countingParams) GetApprovedParameters(ctx context.Context, symbol string) (*model.StrategyParameters, error) {
	p.calls++
	return nil, nil
}

func TestCachedParametersAbsorbsRepeatReads(t *testing.T) {
	source := &countingParams{}
	cached := NewCachedParameters(source, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := cached.GetApprovedParameters(ctx, "EUR/USD"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if source.calls != 1 {
		t.Errorf("store reads = %d, want 1 within TTL", source.calls)
	}
}
