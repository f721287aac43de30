// Package store implements the pluggable persisted-snapshot backend
// (SPEC_FULL.md §4.8): the place a Repository's last successful Snapshot is
// written so a later process start can serve stale-but-available data if
// its initial live fetch fails.
package store

import (
	"context"

	"github.com/nodalsync/configsync/internal/model"
)

// Store loads and saves the latest Snapshot for a namespace.
type Store interface {
	Load(ctx context.Context, namespace string) (*model.Snapshot, error)
	Save(ctx context.Context, namespace string, snapshot *model.Snapshot) error
}
