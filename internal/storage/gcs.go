//go:build gcp

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSBackend stores objects in a Google Cloud Storage bucket
type GCSBackend struct {
	client *gcs.Client
	bucket string
	prefix string
}

// GCSConfig holds configuration for GCSBackend
type GCSConfig struct {
	Bucket string
	Prefix string
}

// NewGCSBackend creates a new GCS-backed object store
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	// Uses application default credentials
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put uploads r under key
func (b *GCSBackend) Put(ctx context.Context, key string, r io.Reader) error {
	w := b.client.Bucket(b.bucket).Object(b.prefix + key).NewWriter(ctx)
	w.ContentType = contentType(key)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed for %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed for %s: %w", key, err)
	}
	return nil
}

// Get downloads the object stored under key
func (b *GCSBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(b.bucket).Object(b.prefix + key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("gcs read failed for %s: %w", key, err)
	}
	return r, nil
}

// Delete removes the object stored under key
func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(b.prefix + key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", key, err)
	}
	return nil
}
