package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/dispatcher"
	"github.com/nodalsync/configsync/internal/facade"
	"github.com/nodalsync/configsync/internal/locator"
	"github.com/nodalsync/configsync/internal/repository"
)

// Container wraps a do/v2 root scope holding this module's process-wide
// singletons, plus factories for the namespace-scoped collaborators that
// sit underneath one — a Repository, its Dispatcher, and the Facade over
// it are built fresh per watched namespace rather than registered as
// injector singletons.
type Container struct {
	injector *do.RootScope
}

// NewContainer builds a Container, loading configuration from configPath.
func NewContainer(configPath string) (*Container, error) {
	injector := do.New()
	do.ProvideNamedValue(injector, ConfigPathKey, configPath)
	RegisterSingletons(injector)
	return &Container{injector: injector}, nil
}

// Injector returns the underlying root scope for advanced resolution.
func (c *Container) Injector() *do.RootScope {
	return c.injector
}

// Invoke resolves a singleton service from the container.
func Invoke[T any](c *Container) (T, error) {
	return do.Invoke[T](c.injector)
}

// MustInvoke resolves a singleton service from the container or panics. Use
// only during startup where errors are fatal.
func MustInvoke[T any](c *Container) T {
	return do.MustInvoke[T](c.injector)
}

// InvokeNamed resolves a named value from the container.
func InvokeNamed[T any](c *Container, name string) (T, error) {
	return do.InvokeNamed[T](c.injector, name)
}

// MustInvokeNamed resolves a named value from the container or panics.
func MustInvokeNamed[T any](c *Container, name string) T {
	return do.MustInvokeNamed[T](c.injector, name)
}

// Shutdown gracefully shuts down every resolved singleton implementing
// do.Shutdowner, in reverse order of initialization.
func (c *Container) Shutdown() error {
	report := c.injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("di: shutdown failed: %s", report.Error())
	}
	return nil
}

// ShutdownWithContext is Shutdown with a deadline.
func (c *Container) ShutdownWithContext(ctx context.Context) error {
	done := make(chan *do.ShutdownReport, 1)
	go func() {
		done <- c.injector.ShutdownWithContext(ctx)
	}()

	select {
	case report := <-done:
		if report != nil && !report.Succeed {
			return fmt.Errorf("di: shutdown failed: %s", report.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("di: shutdown timed out: %w", ctx.Err())
	}
}

// HealthCheck resolves the services whose construction can fail at runtime
// (config load and validation, locator construction), surfacing a
// misconfiguration early rather than at the first namespace's sync attempt.
// It makes no network call, so it does not check meta-server reachability.
func (c *Container) HealthCheck() error {
	if _, err := do.Invoke[*ConfigService](c.injector); err != nil {
		return fmt.Errorf("di: config service unhealthy: %w", err)
	}
	if _, err := do.Invoke[*LocatorService](c.injector); err != nil {
		return fmt.Errorf("di: locator service unhealthy: %w", err)
	}
	return nil
}

// NewRepository builds a Dispatcher and Repository for one namespace, wired
// to the container's process-wide Locator, Rate Limiter, Notifier, and
// optional Store. Each call produces an independently owned Repository;
// the Container does not track the ones it builds — callers must Start and
// eventually Stop each one themselves.
func (c *Container) NewRepository(namespace string) (*repository.Repository, error) {
	cfgSvc, err := do.Invoke[*ConfigService](c.injector)
	if err != nil {
		return nil, err
	}
	loggerSvc, err := do.Invoke[*LoggerService](c.injector)
	if err != nil {
		return nil, err
	}
	httpSvc, err := do.Invoke[*HTTPClientService](c.injector)
	if err != nil {
		return nil, err
	}
	locSvc, err := do.Invoke[*LocatorService](c.injector)
	if err != nil {
		return nil, err
	}
	rlSvc, err := do.Invoke[*RateLimiterService](c.injector)
	if err != nil {
		return nil, err
	}
	notifierSvc, err := do.Invoke[*NotifierService](c.injector)
	if err != nil {
		return nil, err
	}
	storeSvc, err := do.Invoke[*StoreService](c.injector)
	if err != nil {
		return nil, err
	}
	cfg := cfgSvc.Get()

	repo := repository.New(repository.Config{
		AppID:            cfg.AppID,
		Cluster:          cfg.GetCluster(),
		Namespace:        namespace,
		RefreshInterval:  cfg.GetRefreshInterval(),
		OnErrorRetryBase: cfg.GetOnErrorRetryInterval(),
	}, repository.Deps{
		Client:      httpSvc.Client,
		Logger:      loggerSvc.Logger,
		Locator:     locSvc.Locator,
		RateLimiter: rlSvc.LoadConfig,
		Dispatcher:  dispatcher.New(loggerSvc.Logger),
		SelectOrder: locator.SelectOrder,
		Notifier:    notifierSvc.Notifier,
		Store:       storeSvc.Store,
	})
	return repo, nil
}

// NewFacade wraps repo in a Facade for namespace, with defaults as the
// lowest-priority property source, backed by the container's process-wide
// Cache.
func (c *Container) NewFacade(repo *repository.Repository, namespace string, defaults map[string]string) (*facade.Facade, error) {
	loggerSvc, err := do.Invoke[*LoggerService](c.injector)
	if err != nil {
		return nil, err
	}
	cacheSvc, err := do.Invoke[*CacheService](c.injector)
	if err != nil {
		return nil, err
	}
	return facade.New(facade.Config{
		Namespace: namespace,
		Defaults:  defaults,
		Cache:     cacheSvc.Cache,
	}, repo, loggerSvc.Logger), nil
}
