package di

import (
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/locator"
	"github.com/nodalsync/configsync/internal/notifier"
)

// NotifierService wraps the process-wide Long-Poll Notifier (C5): one
// background worker multiplexes every watched namespace over a single
// outstanding long-poll request.
type NotifierService struct {
	Notifier *notifier.Notifier
}

// NewNotifier builds the Notifier. Its background worker does not start
// until the first Repository registers a namespace with it.
func NewNotifier(i do.Injector) (*NotifierService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	httpSvc, err := do.Invoke[*HTTPClientService](i)
	if err != nil {
		return nil, err
	}
	locSvc, err := do.Invoke[*LocatorService](i)
	if err != nil {
		return nil, err
	}
	rlSvc, err := do.Invoke[*RateLimiterService](i)
	if err != nil {
		return nil, err
	}
	loggerSvc, err := do.Invoke[*LoggerService](i)
	if err != nil {
		return nil, err
	}
	cfg := cfgSvc.Get()

	n := notifier.New(notifier.Config{
		AppID:             cfg.AppID,
		Cluster:           cfg.GetCluster(),
		ReadTimeout:       cfg.GetLongPollReadTimeout(),
		ServerHoldTimeout: cfg.Server.GetHoldTimeout(),
		BackoffMin:        cfg.GetOnErrorRetryInterval(),
	}, httpSvc.Client, locSvc.Locator, rlSvc.LongPoll, locator.SelectOrder, loggerSvc.Logger)

	return &NotifierService{Notifier: n}, nil
}

// Shutdown implements do.Shutdowner.
func (s *NotifierService) Shutdown() error {
	s.Notifier.Stop()
	return nil
}
