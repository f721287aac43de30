package di

import (
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/ratelimit"
)

// RateLimiterService holds the two process-wide Rate Limiters (C2) the
// Remote Repository and Long-Poll Notifier each acquire from before issuing
// an HTTP request, sized from the loadConfigQPS / longPollQPS knobs
// (SPEC_FULL.md §6).
type RateLimiterService struct {
	LoadConfig *ratelimit.TokenBucketLimiter
	LongPoll   *ratelimit.TokenBucketLimiter
}

// NewRateLimiters builds both limiters from the loaded configuration.
func NewRateLimiters(i do.Injector) (*RateLimiterService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	cfg := cfgSvc.Get()

	return &RateLimiterService{
		LoadConfig: ratelimit.NewTokenBucketLimiter(cfg.GetLoadConfigQPS()),
		LongPoll:   ratelimit.NewTokenBucketLimiter(cfg.GetLongPollQPS()),
	}, nil
}
