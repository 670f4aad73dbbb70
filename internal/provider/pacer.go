package provider

import (
	"context"
	"time"
)

// Pacer enforces a fixed minimum delay between consecutive upstream calls.
// The provider's rate limit is a hard external constraint; symbols are
// processed sequentially and each call blocks until the previous call's
// delay has elapsed. This is deliberate backpressure, not a queue.
type Pacer struct {
	delay time.Duration
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	last time.Time
}

// NewPacer creates a Pacer with the given inter-call delay. A zero or
// negative delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{
		delay: delay,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Delay returns the configured inter-call delay.
func (p *Pacer) Delay() time.Duration { return p.delay }

// Wait blocks until at least the configured delay has passed since the
// previous Wait returned, or until ctx is cancelled. The first call never
// blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	now := p.now()
	if !p.last.IsZero() {
		if remaining := p.delay - now.Sub(p.last); remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
			now = p.now()
		}
	}
	p.last = now
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
