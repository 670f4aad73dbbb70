// Package redis caches derived read-side data (symbol insights, latest
// quotes) and publishes signal lifecycle events for real-time subscribers.
//
// Redis is optional at runtime: a nil *Cache is valid and every method on it
// degrades to a no-op / cache miss, so the pipeline runs unchanged without a
// Redis deployment.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fxsignals/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	insightsTTL = 12 * time.Hour
	quoteTTL    = 30 * time.Minute

	// SignalChannel is the Pub/Sub channel carrying signal lifecycle events.
	SignalChannel = "pub:signals"
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps the Redis client. The zero value of *Cache (nil) disables it.
type Cache struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// New creates a Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// SignalEvent is the payload published on SignalChannel.
type SignalEvent struct {
	Type   string        `json:"type"` // "created" or "resolved"
	Signal *model.Signal `json:"signal"`
}

// PublishSignalEvent broadcasts a signal lifecycle event. Failures are
// logged, never propagated: event delivery is best-effort.
func (c *Cache) PublishSignalEvent(ctx context.Context, ev SignalEvent) {
	if c == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[redis] marshal signal event: %v", err)
		return
	}
	if err := c.client.Publish(ctx, SignalChannel, string(data)).Err(); err != nil {
		log.Printf("[redis] publish signal event: %v", err)
	}
}

// SubscribeSignals subscribes to the signal event channel. Returns nil when
// the cache is disabled or the subscription cannot be confirmed.
func (c *Cache) SubscribeSignals(ctx context.Context) *goredis.PubSub {
	if c == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, SignalChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[redis] subscribe to %s failed: %v", SignalChannel, err)
		pubsub.Close()
		return nil
	}
	return pubsub
}

// SetInsights caches a symbol's insights.
func (c *Cache) SetInsights(ctx context.Context, ins *model.SymbolInsights) {
	if c == nil || ins == nil {
		return
	}
	data, err := json.Marshal(ins)
	if err != nil {
		log.Printf("[redis] marshal insights: %v", err)
		return
	}
	key := "insights:latest:" + ins.Symbol
	if err := c.client.Set(ctx, key, string(data), insightsTTL).Err(); err != nil {
		log.Printf("[redis] set %s: %v", key, err)
	}
}

// GetInsights returns cached insights for a symbol, or nil on a miss.
func (c *Cache) GetInsights(ctx context.Context, symbol string) *model.SymbolInsights {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, "insights:latest:"+symbol).Result()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[redis] get insights for %s: %v", symbol, err)
		}
		return nil
	}
	var ins model.SymbolInsights
	if err := json.Unmarshal([]byte(data), &ins); err != nil {
		log.Printf("[redis] unmarshal insights for %s: %v", symbol, err)
		return nil
	}
	return &ins
}

// SetQuotes caches the latest mid rates.
func (c *Cache) SetQuotes(ctx context.Context, quotes []model.Quote) {
	if c == nil || len(quotes) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, "quote:latest:"+q.Symbol, string(data), quoteTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] quote pipeline error (%d quotes): %v", len(quotes), err)
	}
}

// GetQuote returns the cached mid rate for a symbol, or nil on a miss.
func (c *Cache) GetQuote(ctx context.Context, symbol string) *model.Quote {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, "quote:latest:"+symbol).Result()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[redis] get quote for %s: %v", symbol, err)
		}
		return nil
	}
	var q model.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil
	}
	return &q
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
