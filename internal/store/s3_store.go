package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nodalsync/configsync/internal/model"
)

// S3Store persists one JSON object per namespace in an S3 bucket. The S3
// client is created lazily, on first use, so construction never needs
// network access or valid credentials up front.
type S3Store struct {
	bucket string
	prefix string
	region string

	clientOnce    sync.Once
	clientInitErr error
	client        *s3.Client
}

// NewS3Store returns an S3Store writing objects under prefix in bucket.
func NewS3Store(bucket, prefix, region string) *S3Store {
	return &S3Store{bucket: bucket, prefix: prefix, region: region}
}

func (s *S3Store) ensureClient(ctx context.Context) (*s3.Client, error) {
	s.clientOnce.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{}
		if s.region != "" {
			opts = append(opts, awsconfig.WithRegion(s.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.clientInitErr = fmt.Errorf("store: load aws config: %w", err)
			return
		}
		s.client = s3.NewFromConfig(cfg)
	})
	return s.client, s.clientInitErr
}

func (s *S3Store) keyFor(namespace string) string {
	return path.Join(s.prefix, namespace+".json")
}

// Load fetches and decodes the namespace's persisted record.
func (s *S3Store) Load(ctx context.Context, namespace string) (*model.Snapshot, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(namespace)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get object %s: %w", namespace, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("store: read object %s: %w", namespace, err)
	}
	var record model.PersistedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", namespace, err)
	}
	return record.ToSnapshot(), nil
}

// Save puts namespace's snapshot, replacing any prior object under the same
// key and verifying the write with a follow-up HeadObject.
func (s *S3Store) Save(ctx context.Context, namespace string, snapshot *model.Snapshot) error {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}

	record := model.NewPersistedRecord(snapshot, time.Now())
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", namespace, err)
	}

	key := s.keyFor(namespace)
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("store: put object %s: %w", namespace, err)
	}

	if _, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("store: verify object %s: %w", namespace, err)
	}
	return nil
}
