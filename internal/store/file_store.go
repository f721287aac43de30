package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nodalsync/configsync/internal/model"
)

// FileStore persists one JSON record per namespace under a directory, each
// write going through a temp-file-then-rename to avoid a reader ever
// observing a partially-written file.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. dir is created lazily on
// first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) pathFor(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

// Load reads and decodes the namespace's persisted record. Returns
// ErrNotFound if nothing has ever been saved for it.
func (s *FileStore) Load(_ context.Context, namespace string) (*model.Snapshot, error) {
	data, err := os.ReadFile(s.pathFor(namespace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read %s: %w", namespace, err)
	}
	var record model.PersistedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", namespace, err)
	}
	return record.ToSnapshot(), nil
}

// Save writes namespace's snapshot, replacing any prior record atomically.
func (s *FileStore) Save(_ context.Context, namespace string, snapshot *model.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	record := model.NewPersistedRecord(snapshot, time.Now())
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", namespace, err)
	}
	target := s.pathFor(namespace)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", namespace, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("store: rename %s: %w", namespace, err)
	}
	return nil
}
