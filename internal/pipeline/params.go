package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"fxsignals/internal/model"
)

// defaultParamsTTL is how long an approved parameter set is served from
// memory before the store is consulted again.
const defaultParamsTTL = 5 * time.Minute

// CachedParameters wraps a ParameterSource with a short-TTL per-symbol
// cache. Parameters are value objects fetched fresh each cycle; the cache
// only absorbs the per-symbol store read inside a single generation run and
// its immediate successors.
type CachedParameters struct {
	source model.ParameterSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]paramsEntry
}

type paramsEntry struct {
	params    *model.StrategyParameters
	fetchedAt time.Time
}

// NewCachedParameters wraps source. A zero ttl uses the default.
func NewCachedParameters(source model.ParameterSource, ttl time.Duration) *CachedParameters {
	if ttl <= 0 {
		ttl = defaultParamsTTL
	}
	return &CachedParameters{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]paramsEntry),
	}
}

// GetApprovedParameters implements model.ParameterSource. Store failures
// fall back to "no override" (nil) so generation proceeds on defaults.
func (c *CachedParameters) GetApprovedParameters(ctx context.Context, symbol string) (*model.StrategyParameters, error) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[symbol]; ok && now.Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.params, nil
	}
	c.mu.Unlock()

	params, err := c.source.GetApprovedParameters(ctx, symbol)
	if err != nil {
		log.Printf("[pipeline] parameter fetch for %s failed, using defaults: %v", symbol, err)
		return nil, nil
	}

	c.mu.Lock()
	c.entries[symbol] = paramsEntry{params: params, fetchedAt: now}
	c.mu.Unlock()
	return params, nil
}
