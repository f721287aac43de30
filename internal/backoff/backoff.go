// Package backoff wraps github.com/jpillora/backoff into the small
// success()/fail() API the Remote Repository and Long-Poll Notifier use to
// pace retries (SPEC_FULL.md §4.2, Backoff Policy).
package backoff

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// Policy is a goroutine-safe exponential-with-cap backoff schedule that
// resets on success.
type Policy struct {
	mu sync.Mutex
	b  *backoff.Backoff
}

// New creates a Policy doubling from min up to max.
func New(min, max time.Duration) *Policy {
	return &Policy{
		b: &backoff.Backoff{
			Min:    min,
			Max:    max,
			Factor: 2,
		},
	}
}

// Fail returns the delay to sleep before the next attempt and advances the
// internal attempt counter. Repeated calls with no intervening Success are
// non-decreasing and never exceed the configured Max.
func (p *Policy) Fail() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.b.Duration()
}

// Success resets the schedule back to Min.
func (p *Policy) Success() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.b.Reset()
}

// Attempt returns the number of consecutive failures recorded since the
// last Success, for logging.
func (p *Policy) Attempt() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(p.b.Attempt())
}

// Sleep blocks for the duration d, or returns ctx.Err() if ctx is canceled
// first. This is the one blocking-wait idiom used throughout the client —
// every sleep site uses this shape rather than a bare time.Sleep, so
// cancellation is propagated instead of silently dropped (SPEC_FULL.md §9a,
// "Interrupted-sleep flag restoration").
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
