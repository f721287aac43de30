package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/cache"
)

// CacheService wraps the process-wide read-through cache every namespace's
// Facade uses to memoize typed-accessor results.
type CacheService struct {
	Cache cache.Cache
}

// NewCache builds the cache backend named by the loaded configuration's
// Cache.Mode.
func NewCache(i do.Injector) (*CacheService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	cfg := cfgSvc.Get()
	c, err := cache.New(context.Background(), &cfg.Cache)
	if err != nil {
		return nil, err
	}
	return &CacheService{Cache: c}, nil
}

// Shutdown implements do.Shutdowner.
func (s *CacheService) Shutdown() error {
	return s.Cache.Close()
}
