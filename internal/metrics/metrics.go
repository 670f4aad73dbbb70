// Package metrics exposes Prometheus metrics and a health endpoint for the
// signal pipeline.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal pipeline.
type Metrics struct {
	SignalsGenerated *prometheus.CounterVec // labels: symbol, tier
	SignalsResolved  *prometheus.CounterVec // labels: outcome
	SignalsPending   prometheus.Gauge

	ProviderRequests prometheus.Counter
	ProviderErrors   *prometheus.CounterVec // labels: kind=rate_limited|other
	ProviderCallDur  prometheus.Histogram

	JobRuns     *prometheus.CounterVec // labels: job, result=ok|error|skipped
	JobDur      *prometheus.HistogramVec
	SymbolSkips *prometheus.CounterVec // labels: reason

	Recommendations prometheus.Counter
	StreamClients   prometheus.Gauge
}

// New registers and returns all pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		SignalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignals_signals_generated_total",
			Help: "Signals created, by symbol and tier",
		}, []string{"symbol", "tier"}),
		SignalsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignals_signals_resolved_total",
			Help: "Signals resolved to a terminal outcome",
		}, []string{"outcome"}),
		SignalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignals_signals_pending",
			Help: "Signals currently awaiting an outcome",
		}),

		ProviderRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxsignals_provider_requests_total",
			Help: "Upstream market-data calls attempted",
		}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignals_provider_errors_total",
			Help: "Upstream call failures, by kind",
		}, []string{"kind"}),
		ProviderCallDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxsignals_provider_call_duration_seconds",
			Help:    "Upstream call latency",
			Buckets: prometheus.DefBuckets,
		}),

		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignals_job_runs_total",
			Help: "Scheduler job outcomes",
		}, []string{"job", "result"}),
		JobDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fxsignals_job_duration_seconds",
			Help:    "Scheduler job wall time",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		SymbolSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignals_symbol_skips_total",
			Help: "Symbols skipped during generation, by reason",
		}, []string{"reason"}),

		Recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxsignals_recommendations_total",
			Help: "Backtest recommendations recorded",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignals_stream_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.SignalsGenerated,
		m.SignalsResolved,
		m.SignalsPending,
		m.ProviderRequests,
		m.ProviderErrors,
		m.ProviderCallDur,
		m.JobRuns,
		m.JobDur,
		m.SymbolSkips,
		m.Recommendations,
		m.StreamClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool      `json:"sqlite_ok"`
	RedisConnected bool      `json:"redis_connected"`
	ProviderOK     bool      `json:"provider_ok"`
	LastCycleTime  time.Time `json:"last_cycle_time"`

	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetProviderOK(v bool) {
	h.mu.Lock()
	h.ProviderOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycleTime(t time.Time) {
	h.mu.Lock()
	h.LastCycleTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK || !h.ProviderOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	cycleAge := ""
	if !h.LastCycleTime.IsZero() {
		cycleAge = time.Since(h.LastCycleTime).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		ProviderOK      bool    `json:"provider_ok"`
		LastCycleTime   string  `json:"last_cycle_time"`
		CycleAge        string  `json:"cycle_age"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		ProviderOK:      h.ProviderOK,
		LastCycleTime:   h.LastCycleTime.Format(time.RFC3339),
		CycleAge:        cycleAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. Extra handlers (e.g. the
// WebSocket stream endpoint) can be attached via mux.
func NewServer(addr string, health *HealthStatus, extra map[string]http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)
	for pattern, handler := range extra {
		mux.Handle(pattern, handler)
	}

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
