// Package storage persists package artifacts and their extracted
// sub-resources, keyed by (id, version).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/signer"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a stored object does not exist
var ErrNotFound = errors.New("object not found")

// Backend is a flat object store
type Backend interface {
	// Put stores r under key, replacing any existing object
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens the object stored under key. Missing objects return ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// Resource names one stored file of a package version
type Resource int

const (
	ResourcePackage Resource = iota
	ResourceManifest
	ResourceReadme
	ResourceIcon
	ResourceSignature
)

var allResources = []Resource{ResourcePackage, ResourceManifest, ResourceReadme, ResourceIcon, ResourceSignature}

// String returns the string representation of Resource
func (r Resource) String() string {
	switch r {
	case ResourcePackage:
		return "package"
	case ResourceManifest:
		return "manifest"
	case ResourceReadme:
		return "readme"
	case ResourceIcon:
		return "icon"
	case ResourceSignature:
		return "signature"
	default:
		return "unknown"
	}
}

func (r Resource) suffix() string {
	switch r {
	case ResourceManifest:
		return ".manifest"
	case ResourceReadme:
		return ".readme"
	case ResourceIcon:
		return ".icon"
	case ResourceSignature:
		return ".pkg.asc"
	default:
		return ".pkg"
	}
}

// ObjectKey returns the backend key of a package resource:
// packages/{id}/{version}/{id}.{version}{suffix}, lower-cased
func ObjectKey(id, version string, r Resource) string {
	id = models.NormalizeID(id)
	version = strings.ToLower(version)
	return fmt.Sprintf("packages/%s/%s/%s.%s%s", id, version, id, version, r.suffix())
}

// PackageStore stores package versions in a Backend
type PackageStore struct {
	backend Backend
	signer  signer.Signer
}

// NewPackageStore creates a PackageStore. signer may be nil.
func NewPackageStore(backend Backend, s signer.Signer) *PackageStore {
	return &PackageStore{backend: backend, signer: s}
}

// Save stores the raw artifact and its sub-resources. readme and icon may
// be nil. When a signer is configured raw must also be an io.Seeker, and
// a detached signature is stored next to the artifact.
func (s *PackageStore) Save(ctx context.Context, pkg *models.PackageDescriptor, raw, manifest, readme, icon io.Reader) error {
	id, version := pkg.ID, pkg.NormalizedVersion()

	if err := s.backend.Put(ctx, ObjectKey(id, version, ResourcePackage), raw); err != nil {
		return fmt.Errorf("failed to store package: %w", err)
	}

	if err := s.backend.Put(ctx, ObjectKey(id, version, ResourceManifest), manifest); err != nil {
		return fmt.Errorf("failed to store manifest: %w", err)
	}

	if readme != nil {
		if err := s.backend.Put(ctx, ObjectKey(id, version, ResourceReadme), readme); err != nil {
			return fmt.Errorf("failed to store readme: %w", err)
		}
	}

	if icon != nil {
		if err := s.backend.Put(ctx, ObjectKey(id, version, ResourceIcon), icon); err != nil {
			return fmt.Errorf("failed to store icon: %w", err)
		}
	}

	if s.signer != nil {
		if err := s.sign(ctx, id, version, raw); err != nil {
			return err
		}
	}

	logrus.Debugf("Stored %s %s", id, version)
	return nil
}

func (s *PackageStore) sign(ctx context.Context, id, version string, raw io.Reader) error {
	seeker, ok := raw.(io.Seeker)
	if !ok {
		return fmt.Errorf("cannot sign %s %s: package stream is not seekable", id, version)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind package for signing: %w", err)
	}

	signature, err := s.signer.SignDetached(raw)
	if err != nil {
		return fmt.Errorf("failed to sign package: %w", err)
	}

	if err := s.backend.Put(ctx, ObjectKey(id, version, ResourceSignature), bytes.NewReader(signature)); err != nil {
		return fmt.Errorf("failed to store signature: %w", err)
	}
	return nil
}

// Open opens one stored resource of a package version
func (s *PackageStore) Open(ctx context.Context, id, version string, r Resource) (io.ReadCloser, error) {
	return s.backend.Get(ctx, ObjectKey(id, version, r))
}

// Delete removes every stored resource of a package version
func (s *PackageStore) Delete(ctx context.Context, id, version string) error {
	for _, r := range allResources {
		if err := s.backend.Delete(ctx, ObjectKey(id, version, r)); err != nil {
			return fmt.Errorf("failed to delete %s of %s %s: %w", r, id, version, err)
		}
	}
	return nil
}
