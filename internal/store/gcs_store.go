package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"cloud.google.com/go/storage"

	"github.com/nodalsync/configsync/internal/model"
)

// GCSStore persists one JSON object per namespace in a Google Cloud Storage
// bucket. The storage client is created lazily, on first use.
type GCSStore struct {
	bucket string
	prefix string

	clientOnce    sync.Once
	clientInitErr error
	client        *storage.Client
}

// NewGCSStore returns a GCSStore writing objects under prefix in bucket.
func NewGCSStore(bucket, prefix string) *GCSStore {
	return &GCSStore{bucket: bucket, prefix: prefix}
}

func (s *GCSStore) ensureClient(ctx context.Context) (*storage.Client, error) {
	s.clientOnce.Do(func() {
		client, err := storage.NewClient(ctx)
		if err != nil {
			s.clientInitErr = fmt.Errorf("store: create gcs client: %w", err)
			return
		}
		s.client = client
	})
	return s.client, s.clientInitErr
}

func (s *GCSStore) objectFor(namespace string) string {
	return path.Join(s.prefix, namespace+".json")
}

// Load fetches and decodes the namespace's persisted record.
func (s *GCSStore) Load(ctx context.Context, namespace string) (*model.Snapshot, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	obj := client.Bucket(s.bucket).Object(s.objectFor(namespace))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: open reader %s: %w", namespace, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("store: read object %s: %w", namespace, err)
	}
	var record model.PersistedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", namespace, err)
	}
	return record.ToSnapshot(), nil
}

// Save writes namespace's snapshot. GCS object writes are atomic from a
// reader's point of view: the object is only visible once Writer.Close
// succeeds.
func (s *GCSStore) Save(ctx context.Context, namespace string, snapshot *model.Snapshot) error {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}

	record := model.NewPersistedRecord(snapshot, time.Now())
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", namespace, err)
	}

	obj := client.Bucket(s.bucket).Object(s.objectFor(namespace))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("store: write object %s: %w", namespace, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("store: close writer %s: %w", namespace, err)
	}
	return nil
}
