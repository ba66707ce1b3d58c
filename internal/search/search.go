// Package search maintains the secondary search index of committed
// package versions.
package search

import (
	"context"

	"github.com/ralt/pkgfeed/internal/models"
)

// Indexer adds committed package versions to the index
type Indexer interface {
	Index(ctx context.Context, pkg *models.PackageDescriptor) error
}

// Remover drops package versions from the index
type Remover interface {
	Remove(ctx context.Context, id, version string) error
}

// Result is one package matched by a search
type Result struct {
	ID            string
	LatestVersion string
	Title         string
	Description   string
	Versions      []string
}

// NullIndex discards every update
type NullIndex struct{}

// Index implements Indexer
func (NullIndex) Index(ctx context.Context, pkg *models.PackageDescriptor) error {
	return nil
}

// Remove implements Remover
func (NullIndex) Remove(ctx context.Context, id, version string) error {
	return nil
}

// Index both indexes and removes package versions
type Index interface {
	Indexer
	Remover
}
