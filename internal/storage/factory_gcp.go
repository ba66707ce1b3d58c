//go:build gcp

package storage

import "context"

func newGCSBackend(ctx context.Context, cfg Config) (Backend, error) {
	return NewGCSBackend(ctx, GCSConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
}
