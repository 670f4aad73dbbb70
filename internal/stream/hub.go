// Package stream fans signal lifecycle events out to WebSocket subscribers.
//
// Events enter the hub either directly (in-process Publish calls) or via the
// Redis Pub/Sub channel when multiple processes share one feed. Each event is
// wrapped in a sequenced envelope; a short backlog lets reconnecting clients
// backfill what they missed instead of starting cold.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"fxsignals/internal/store/redis"
)

const backlogCapacity = 256

// envelope is the wire format sent to WebSocket clients.
type envelope struct {
	Seq   int64             `json:"seq"`
	Event redis.SignalEvent `json:"event"`
	TS    string            `json:"ts"`
}

// Hub manages WebSocket clients and signal-event fan-out.
type Hub struct {
	upgrader websocket.Upgrader
	gauge    prometheus.Gauge // optional connected-client gauge
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]bool
	seq     int64
	backlog *Backlog
}

// Option customizes a Hub.
type Option func(*Hub)

// WithClientGauge tracks the connected-client count in a Prometheus gauge.
func WithClientGauge(g prometheus.Gauge) Option {
	return func(h *Hub) { h.gauge = g }
}

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is consumed by dashboards on other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:     time.Now,
		clients: make(map[*client]bool),
		backlog: NewBacklog(backlogCapacity),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish broadcasts a signal event to every connected client and records it
// in the backlog.
func (h *Hub) Publish(ev redis.SignalEvent) {
	h.mu.Lock()
	h.seq++
	env := envelope{
		Seq:   h.seq,
		Event: ev,
		TS:    h.now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.mu.Unlock()
		log.Printf("[stream] marshal envelope: %v", err)
		return
	}
	h.backlog.Push(env.Seq, data)
	for c := range h.clients {
		c.enqueue(data)
	}
	h.mu.Unlock()
}

// ConsumeRedis feeds the hub from the shared Pub/Sub channel. Blocks until
// ctx is cancelled; the subscription is re-established after failures.
func (h *Hub) ConsumeRedis(ctx context.Context, cache *redis.Cache) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		pubsub := cache.SubscribeSignals(ctx)
		if pubsub == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		ch := pubsub.Channel()
		for msg := range ch {
			var ev redis.SignalEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[stream] bad signal event payload: %v", err)
				continue
			}
			h.Publish(ev)
		}
		pubsub.Close()
		log.Printf("[stream] pub/sub channel closed, resubscribing")
	}
}

// ServeHTTP upgrades the connection and registers the client. A client may
// pass ?after_seq=N to backfill events it missed while disconnected.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] upgrade failed: %v", err)
		return
	}

	afterSeq := int64(-1)
	if raw := r.URL.Query().Get("after_seq"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			afterSeq = n
		}
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	if afterSeq >= 0 {
		for _, data := range h.backlog.Since(afterSeq) {
			c.enqueue(data)
		}
	}
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.Set(float64(count))
	}
	log.Printf("[stream] client connected (%d total)", count)

	go c.writePump()
	go c.readPump()
}

// remove drops a client from the hub.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.Set(float64(count))
	}
	log.Printf("[stream] client disconnected (%d total)", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
