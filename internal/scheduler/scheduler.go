// Package scheduler coordinates the periodic pipeline jobs.
//
// The pipeline is trigger-driven, not loop-driven: each job (signal
// generation, outcome resolution, insight analysis, backtesting) is
// independently triggerable and enforces its own minimum re-run interval
// against a persisted last-run timestamp. A trigger arriving early is a
// cheap no-op. Each job holds a single-flight latch so overlapping triggers
// for the same job are dropped; different jobs run concurrently.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fxsignals/internal/logger"
)

// Default job names and minimum re-run intervals.
const (
	JobGeneration = "generation"
	JobResolution = "resolution"
	JobInsights   = "insights"
	JobBacktest   = "backtest"

	GenerationInterval = 15 * time.Minute
	ResolutionInterval = 5 * time.Minute
	InsightsInterval   = 6 * time.Hour
	BacktestInterval   = 7 * 24 * time.Hour
)

// Result classifies what a trigger did.
type Result string

const (
	Ran            Result = "ran"
	TooSoon        Result = "too-soon"
	AlreadyRunning Result = "already-running"
)

// RunStore persists per-job last-run timestamps across restarts.
type RunStore interface {
	LastRun(ctx context.Context, job string) (time.Time, error)
	SetLastRun(ctx context.Context, job string, t time.Time) error
}

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc

	mu      sync.Mutex
	running bool
}

// tryAcquire takes the single-flight latch; returns false if held.
func (j *job) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

func (j *job) release() {
	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// Coordinator owns all scheduling state explicitly; there are no
// module-level latches or timestamps.
type Coordinator struct {
	store RunStore
	now   func() time.Time

	mu   sync.RWMutex
	jobs map[string]*job
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator persisting last-run timestamps in store.
func New(store RunStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		now:   time.Now,
		jobs:  make(map[string]*job),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a job with its minimum re-run interval. Registering the
// same name twice replaces the previous definition.
func (c *Coordinator) Register(name string, interval time.Duration, fn JobFunc) {
	c.mu.Lock()
	c.jobs[name] = &job{name: name, interval: interval, fn: fn}
	c.mu.Unlock()
}

// Trigger attempts to run a job now. It returns TooSoon when the minimum
// interval since the persisted last run has not elapsed, AlreadyRunning when
// the job's previous invocation is still in flight, and Ran (plus the job's
// error, if any) otherwise.
func (c *Coordinator) Trigger(ctx context.Context, name string) (Result, error) {
	c.mu.RLock()
	j, ok := c.jobs[name]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown job %q", name)
	}

	if !j.tryAcquire() {
		log.Printf("[scheduler] %s: already running, trigger dropped", name)
		return AlreadyRunning, nil
	}
	defer j.release()

	now := c.now().UTC()
	last, err := c.store.LastRun(ctx, name)
	if err != nil {
		return "", fmt.Errorf("load last run for %s: %w", name, err)
	}
	if !last.IsZero() && now.Sub(last) < j.interval {
		return TooSoon, nil
	}

	log.Printf("[scheduler] %s: starting (last run %v)", name, last)
	start := now
	runCtx := logger.WithTraceID(ctx, logger.GenerateTraceID(name, start))
	runErr := j.fn(runCtx)

	// The run is recorded even when the job errored: a failing job must not
	// retry in a tight loop against a struggling upstream.
	if err := c.store.SetLastRun(ctx, name, start); err != nil {
		log.Printf("[scheduler] %s: persist last run failed: %v", name, err)
	}
	if runErr != nil {
		log.Printf("[scheduler] %s: failed after %v: %v", name, time.Since(start), runErr)
		return Ran, runErr
	}
	log.Printf("[scheduler] %s: completed", name)
	return Ran, nil
}

// RunTicker drives a job from a ticker until ctx is cancelled. An immediate
// initial trigger fires before the first tick; the coordinator's interval
// gate keeps it a no-op when the job ran recently.
func (c *Coordinator) RunTicker(ctx context.Context, name string, tick time.Duration) {
	if _, err := c.Trigger(ctx, name); err != nil {
		log.Printf("[scheduler] %s: %v", name, err)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Trigger(ctx, name); err != nil {
				log.Printf("[scheduler] %s: %v", name, err)
			}
		}
	}
}
