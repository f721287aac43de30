package store

import (
	"fmt"

	"github.com/nodalsync/configsync/internal/config"
)

// New builds the Store named by cfg.StoreBackend, or (nil, nil) when the
// backend is "none" — no persisted-snapshot fallback is configured.
func New(cfg *config.Config) (Store, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreBackendNone:
		return nil, nil
	case config.StoreBackendFile:
		return NewFileStore(cfg.Store.Path), nil
	case config.StoreBackendS3:
		return NewS3Store(cfg.Store.Bucket, cfg.Store.Prefix, cfg.Store.Region), nil
	case config.StoreBackendGCS:
		return NewGCSStore(cfg.Store.Bucket, cfg.Store.Prefix), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.StoreBackend)
	}
}
