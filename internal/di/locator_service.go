package di

import (
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/locator"
)

// LocatorService wraps the process-wide Service Locator (C1): one instance
// resolves Config Service endpoints for every namespace's Repository and
// for the Notifier.
type LocatorService struct {
	Locator *locator.Locator
}

// NewLocator builds the Service Locator from the loaded configuration and
// the shared HTTP client. It does not Start the locator: the caller starts
// it once, after the container has fully resolved, and handles a failed
// initial meta-server fetch itself; construction never contacts the meta
// server.
func NewLocator(i do.Injector) (*LocatorService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	httpSvc, err := do.Invoke[*HTTPClientService](i)
	if err != nil {
		return nil, err
	}
	loggerSvc, err := do.Invoke[*LoggerService](i)
	if err != nil {
		return nil, err
	}
	cfg := cfgSvc.Get()

	l := locator.New(locator.Config{
		MetaServiceURL: cfg.MetaServiceURL,
		Breaker:        cfg.Health.CircuitBreaker,
	}, httpSvc.Client, loggerSvc.Logger)

	return &LocatorService{Locator: l}, nil
}

// Shutdown implements do.Shutdowner.
func (s *LocatorService) Shutdown() error {
	s.Locator.Stop()
	return nil
}
