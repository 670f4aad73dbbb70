package provider

import (
	"context"

	"fxsignals/internal/model"
)

// GuardedSource routes candle and quote fetches through a circuit breaker so
// a failing upstream gets probed instead of hammered. Rate-limit rejections
// count as failures too: an upstream shedding load wants silence, and an open
// breaker provides exactly that.
type GuardedSource struct {
	source  model.CandleSource
	quotes  model.QuoteSource
	breaker *CircuitBreaker
}

// NewGuardedSource wraps source and quotes with breaker.
func NewGuardedSource(source model.CandleSource, quotes model.QuoteSource, breaker *CircuitBreaker) *GuardedSource {
	return &GuardedSource{
		source:  source,
		quotes:  quotes,
		breaker: breaker,
	}
}

// FetchCandles implements model.CandleSource.
func (g *GuardedSource) FetchCandles(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.Candle, error) {
	var out []model.Candle
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.source.FetchCandles(ctx, symbol, interval, count)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchQuotes implements model.QuoteSource.
func (g *GuardedSource) FetchQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	var out []model.Quote
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.quotes.FetchQuotes(ctx, symbols)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Breaker exposes the underlying breaker for state inspection.
func (g *GuardedSource) Breaker() *CircuitBreaker {
	return g.breaker
}
