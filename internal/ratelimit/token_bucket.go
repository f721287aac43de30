package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter implements RateLimiter using golang.org/x/time/rate.
//
// The token bucket algorithm provides smooth rate limiting without the
// boundary burst problem of fixed windows. Burst is set equal to the QPS so
// a caller can consume a full second's capacity instantly, then refills
// gradually.
//
// Thread safety: golang.org/x/time/rate.Limiter is safe for concurrent use,
// so TokenBucketLimiter needs no locking of its own.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a token bucket rate limiter admitting up to
// qps requests per second, with burst equal to qps. A zero or negative qps
// is treated as unlimited.
func NewTokenBucketLimiter(qps int) *TokenBucketLimiter {
	const unlimitedQPS = 1_000_000

	if qps <= 0 {
		qps = unlimitedQPS
	}

	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), qps),
	}
}

// TryAcquire waits until the limiter admits a request or ctx is canceled,
// for at most timeout. If the next token cannot arrive within timeout,
// rate.Limiter.Wait fails at once and TryAcquire returns
// ErrContextCancelled without waiting.
func (l *TokenBucketLimiter) TryAcquire(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.limiter.Wait(waitCtx); err != nil {
		return ErrContextCancelled
	}
	return nil
}
