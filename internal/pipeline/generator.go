// Package pipeline runs the signal generation cycle: fetch candles per
// symbol, analyze, persist, and announce new signals.
//
// Symbols are processed strictly sequentially with a pacing delay between
// provider calls. The upstream rate limit is a hard external constraint;
// concurrent fan-out across symbols would violate it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fxsignals/internal/markethours"
	"fxsignals/internal/metrics"
	"fxsignals/internal/model"
	"fxsignals/internal/notification"
	"fxsignals/internal/provider"
	"fxsignals/internal/provider/fxapi"
	"fxsignals/internal/store/redis"
	"fxsignals/internal/strategy"
)

const (
	// primaryCandleCount leaves headroom over the engine's 200-candle floor.
	primaryCandleCount = 250
	higherCandleCount  = 120
)

// Generator runs one signal generation cycle over the configured symbols.
type Generator struct {
	symbols []string
	source  model.CandleSource
	quotes  model.QuoteSource
	store   model.SignalStore
	engine  *strategy.Engine
	params  model.ParameterSource
	pacer   *provider.Pacer

	cache    *redis.Cache          // optional, nil-safe
	sink     EventSink             // optional in-process fan-out
	notifier notification.Notifier // optional
	mets     *metrics.Metrics      // optional
	now      func() time.Time
}

// EventSink receives signal lifecycle events for in-process fan-out (the
// WebSocket hub). When Redis carries the events instead, no sink is wired
// and subscribers read the Pub/Sub channel.
type EventSink interface {
	Publish(ev redis.SignalEvent)
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithCache publishes signal events and quote snapshots to Redis.
func WithCache(cache *redis.Cache) Option {
	return func(g *Generator) { g.cache = cache }
}

// WithEventSink fans created-signal events out in-process.
func WithEventSink(sink EventSink) Option {
	return func(g *Generator) { g.sink = sink }
}

// WithNotifier sends an alert for every created signal.
func WithNotifier(n notification.Notifier) Option {
	return func(g *Generator) { g.notifier = n }
}

// WithMetrics records pipeline counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.mets = m }
}

// New creates a Generator.
func New(symbols []string, source model.CandleSource, quotes model.QuoteSource,
	store model.SignalStore, engine *strategy.Engine, params model.ParameterSource,
	pacer *provider.Pacer, opts ...Option) *Generator {
	g := &Generator{
		symbols: symbols,
		source:  source,
		quotes:  quotes,
		store:   store,
		engine:  engine,
		params:  params,
		pacer:   pacer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats summarizes one generation cycle.
type Stats struct {
	Analyzed int
	Created  int
	Skipped  int
}

// Run executes one generation cycle. Per-symbol failures are logged and
// skipped; the cycle itself only fails on cancellation.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	now := g.now().UTC()

	if !markethours.IsMarketOpen(now) {
		log.Printf("[pipeline] market closed (%s), skipping generation", markethours.StatusString(now))
		return stats, nil
	}

	quotes := g.fetchQuotes(ctx)

	for _, symbol := range g.symbols {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		sig, err := g.analyzeSymbol(ctx, symbol)
		if err != nil {
			stats.Skipped++
			g.countSkip(err)
			if errors.Is(err, fxapi.ErrRateLimited) {
				log.Printf("[pipeline] %s: provider rate limited, backing off: %v", symbol, err)
			} else {
				log.Printf("[pipeline] %s: %v", symbol, err)
			}
			continue
		}
		stats.Analyzed++
		if sig == nil {
			continue
		}

		if q, ok := quotes[symbol]; ok {
			sig.CurrentPrice = q.MidRate
		}

		if err := g.store.CreateIfAbsent(ctx, sig); err != nil {
			stats.Skipped++
			log.Printf("[pipeline] %s: persist failed: %v", symbol, err)
			continue
		}
		stats.Created++
		g.announce(ctx, sig)
	}

	log.Printf("[pipeline] generation cycle done: %d analyzed, %d created, %d skipped",
		stats.Analyzed, stats.Created, stats.Skipped)
	return stats, nil
}

// analyzeSymbol fetches both candle windows (paced) and runs the engine.
func (g *Generator) analyzeSymbol(ctx context.Context, symbol string) (*model.Signal, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	primary, err := g.fetchCandles(ctx, symbol, model.Interval1H, primaryCandleCount)
	if err != nil {
		return nil, fmt.Errorf("primary candles: %w", err)
	}

	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	higher, err := g.fetchCandles(ctx, symbol, model.Interval4H, higherCandleCount)
	if err != nil {
		return nil, fmt.Errorf("higher candles: %w", err)
	}

	params := model.DefaultParameters()
	if g.params != nil {
		if override, err := g.params.GetApprovedParameters(ctx, symbol); err == nil && override != nil {
			params = *override
		}
	}

	return g.engine.Analyze(ctx, symbol, primary, higher, params), nil
}

func (g *Generator) fetchCandles(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.Candle, error) {
	start := time.Now()
	if g.mets != nil {
		g.mets.ProviderRequests.Inc()
	}
	candles, err := g.source.FetchCandles(ctx, symbol, interval, count)
	if g.mets != nil {
		g.mets.ProviderCallDur.Observe(time.Since(start).Seconds())
	}
	return candles, err
}

// fetchQuotes grabs display mid rates for all symbols in one paced call.
// Quote failures never block generation; signals just keep their entry
// price as the display price.
func (g *Generator) fetchQuotes(ctx context.Context) map[string]model.Quote {
	out := make(map[string]model.Quote, len(g.symbols))
	if g.quotes == nil {
		return out
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return out
	}
	quotes, err := g.quotes.FetchQuotes(ctx, g.symbols)
	if err != nil {
		log.Printf("[pipeline] quote fetch failed: %v", err)
		return out
	}
	for _, q := range quotes {
		out[q.Symbol] = q
	}
	g.cache.SetQuotes(ctx, quotes)
	return out
}

func (g *Generator) announce(ctx context.Context, sig *model.Signal) {
	log.Printf("[pipeline] %s %s signal %s: confidence %d (%s)",
		sig.Symbol, sig.Direction, sig.ID, sig.Confidence, sig.Tier)

	if g.mets != nil {
		g.mets.SignalsGenerated.WithLabelValues(sig.Symbol, string(sig.Tier)).Inc()
	}
	ev := redis.SignalEvent{Type: "created", Signal: sig}
	g.cache.PublishSignalEvent(ctx, ev)
	if g.sink != nil {
		g.sink.Publish(ev)
	}
	if g.notifier != nil {
		if err := g.notifier.Send(ctx, notification.SignalAlert(sig)); err != nil {
			log.Printf("[pipeline] notify for %s failed: %v", sig.ID, err)
		}
	}
}

func (g *Generator) countSkip(err error) {
	if g.mets == nil {
		return
	}
	reason := "provider_error"
	if errors.Is(err, fxapi.ErrRateLimited) {
		reason = "rate_limited"
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "cancelled"
	}
	g.mets.SymbolSkips.WithLabelValues(reason).Inc()
	if reason != "cancelled" {
		g.mets.ProviderErrors.WithLabelValues(reason).Inc()
	}
}
