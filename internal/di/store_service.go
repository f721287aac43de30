package di

import (
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/store"
)

// StoreService wraps the optional persisted-snapshot Store (§4.8). Store is
// nil when the configured backend is "none", in which case a Repository's
// initial-load failure has no stale fallback to serve.
type StoreService struct {
	Store store.Store
}

// NewStore builds the Store named by the loaded configuration's
// StoreBackend.
func NewStore(i do.Injector) (*StoreService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	s, err := store.New(cfgSvc.Get())
	if err != nil {
		return nil, err
	}
	return &StoreService{Store: s}, nil
}
