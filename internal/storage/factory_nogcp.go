//go:build !gcp

package storage

import (
	"context"
	"fmt"
)

func newGCSBackend(ctx context.Context, cfg Config) (Backend, error) {
	return nil, fmt.Errorf("gcs storage requires a build with -tags gcp")
}
