// Package ratelimit implements the Rate Limiter (SPEC_FULL.md §4.2): a
// per-request-class gate that caps outgoing traffic to a configured QPS.
//
// The Remote Repository holds one instance keyed to loadConfigQPS and gates
// its config fetches on it; the Long-Poll Notifier holds a second instance
// keyed to longPollQPS and gates its poll rounds on it. Both call sites use
// the same pattern: acquire with a bounded wait, and if the wait times out,
// proceed anyway rather than block indefinitely — a saturated limiter must
// never cause a wake to be dropped.
//
// Basic usage:
//
//	limiter := ratelimit.NewTokenBucketLimiter(5) // 5 QPS
//
//	if err := limiter.TryAcquire(ctx, 2*time.Second); err != nil {
//		// timed out waiting for budget; caller decides whether to proceed
//	}
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrContextCancelled is returned when the context is canceled, or when no
// request slot can be obtained within the caller's timeout.
var ErrContextCancelled = errors.New("ratelimit: context canceled")

// RateLimiter defines the interface for rate limiting operations.
// All implementations must be safe for concurrent use.
type RateLimiter interface {
	// TryAcquire waits up to timeout for a request slot. When no slot can
	// become available within timeout, it returns at once rather than
	// waiting the timeout out. It is used by
	// callers that gate a single outgoing request on a QPS budget (Remote
	// Repository's loadConfigQPS, Long-Poll Notifier's longPollQPS) and
	// would rather give up than wait indefinitely.
	// Returns ErrContextCancelled if ctx is canceled or no slot is
	// available within timeout.
	TryAcquire(ctx context.Context, timeout time.Duration) error
}
