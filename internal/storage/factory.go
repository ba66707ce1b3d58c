package storage

import (
	"context"
	"fmt"
)

// Config selects and configures a Backend
type Config struct {
	Type     string
	Path     string
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewBackend creates the backend named by cfg.Type
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "filesystem":
		return NewFileSystemBackend(cfg.Path)
	case "s3":
		return NewS3Backend(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case "gcs":
		return newGCSBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
