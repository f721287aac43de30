package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/config"
)

// ConfigPathKey names the do.ProvideNamedValue slot the config file path is
// injected under.
const ConfigPathKey = "config.path"

// ConfigService wraps a hot-reloadable config.Runtime with the fsnotify
// watcher that keeps it current, so every other service depends on the
// interface (RuntimeConfig) rather than a snapshot that goes stale.
type ConfigService struct {
	runtime *config.Runtime
	watcher *config.Watcher
	path    string
}

// Get returns the current configuration via a lock-free atomic read.
func (c *ConfigService) Get() *config.Config {
	return c.runtime.Get()
}

// StartWatching begins watching the config file for changes in the
// background. It registers the reload callback lazily, so calling it more
// than once would double-register; callers invoke it exactly once, after
// the container has fully resolved. A nil watcher (creation failed at
// NewConfig time) makes this a no-op.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}
	c.watcher.OnReload(func(cfg *config.Config) error {
		c.runtime.Store(cfg)
		log.Info().Str("path", c.path).Msg("di: config hot-reloaded")
		return nil
	})
	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("di: config watcher stopped")
		}
	}()
}

// Shutdown implements do.Shutdowner.
func (c *ConfigService) Shutdown() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

// NewConfig loads the configuration file named under ConfigPathKey and
// wraps it for hot-reload. A watcher-creation failure is logged, not fatal:
// hot-reload is best-effort and the process runs fine on the config as
// loaded at startup.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("di: load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config %s: %w", path, err)
	}

	svc := &ConfigService{runtime: config.NewRuntime(cfg), path: path}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("di: config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}
