// Package ingest runs the write path of the feed: one Ingest call takes an
// uploaded artifact from raw bytes to a committed, indexed package version.
package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ralt/pkgfeed/internal/config"
	"github.com/ralt/pkgfeed/internal/extractor"
	"github.com/ralt/pkgfeed/internal/metadata"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/sirupsen/logrus"
)

// MetadataStore is the source of truth for which versions exist
type MetadataStore interface {
	Exists(ctx context.Context, id, version string) (bool, error)
	// Add returns metadata.ErrAlreadyExists when (id, version) is taken
	Add(ctx context.Context, pkg *models.PackageDescriptor) error
	HardDelete(ctx context.Context, id, version string) error
}

// ContentStore holds package bytes and sub-resources
type ContentStore interface {
	// readme and icon may be nil
	Save(ctx context.Context, pkg *models.PackageDescriptor, raw, manifest, readme, icon io.Reader) error
	Delete(ctx context.Context, id, version string) error
}

type SearchIndexer interface {
	Index(ctx context.Context, pkg *models.PackageDescriptor) error
}

type RetentionEnforcer interface {
	DeleteOldVersions(ctx context.Context, pkg *models.PackageDescriptor, maxMajor, maxMinor, maxPatch, maxPrerelease *int) (int, error)
}

type Extractor interface {
	Extract(ctx context.Context, r io.Reader, arena *spool.Arena) (*models.PackageDescriptor, *extractor.Bundle, error)
}

// Clock returns the publish timestamp of new versions
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Dependencies are the collaborators of a Service. Extractor and Clock
// default to the real implementations; Retention may be nil.
type Dependencies struct {
	Extractor Extractor
	Metadata  MetadataStore
	Content   ContentStore
	Search    SearchIndexer
	Retention RetentionEnforcer
	Clock     Clock
	Config    config.Source

	// SpoolDir receives per-attempt temporary files (os.TempDir when empty)
	SpoolDir string
}

// Service ingests uploaded packages
type Service struct {
	extractor Extractor
	metadata  MetadataStore
	content   ContentStore
	search    SearchIndexer
	retention RetentionEnforcer
	clock     Clock
	config    config.Source
	spoolDir  string
	metrics   *metrics
}

// New creates a Service
func New(deps Dependencies) *Service {
	s := &Service{
		extractor: deps.Extractor,
		metadata:  deps.Metadata,
		content:   deps.Content,
		search:    deps.Search,
		retention: deps.Retention,
		clock:     deps.Clock,
		config:    deps.Config,
		spoolDir:  deps.SpoolDir,
		metrics:   newMetrics(),
	}
	if s.extractor == nil {
		s.extractor = extractor.New()
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.config == nil {
		s.config = config.Static{}
	}
	return s
}

// Ingest runs one ingestion attempt. Soft outcomes are returned with a nil
// error; infrastructure faults return a *models.IngestError and no
// outcome.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (models.Outcome, error) {
	start := time.Now()
	a := &attempt{
		Service:  s,
		log:      logrus.WithField("attempt", uuid.NewString()),
		snapshot: s.config.Snapshot(),
		arena:    spool.NewArena(s.spoolDir),
	}
	defer func() {
		if err := a.arena.Close(); err != nil {
			a.log.Warnf("Failed to clean up spool files: %v", err)
		}
	}()

	outcome, err := a.run(ctx, r)
	s.metrics.record(ctx, outcome, err, time.Since(start))
	return outcome, err
}

// attempt carries the state of one Ingest call
type attempt struct {
	*Service
	log      *logrus.Entry
	snapshot models.Snapshot
	arena    *spool.Arena
}

func (a *attempt) run(ctx context.Context, r io.Reader) (models.Outcome, error) {
	pkg, bundle, err := a.extractor.Extract(ctx, r, a.arena)
	if err != nil {
		if errors.Is(err, extractor.ErrInvalidPackage) {
			a.log.Warnf("Rejected invalid package: %v", err)
			return models.InvalidPackage, nil
		}
		return 0, a.fatal(models.StageExtract, nil, err)
	}
	pkg.Published = a.clock.Now().UTC()
	a.log = a.log.WithFields(logrus.Fields{
		"package": pkg.ID,
		"version": pkg.NormalizedVersion(),
	})

	decision, err := a.resolve(ctx, pkg)
	if err != nil {
		return 0, err
	}
	if decision == Reject {
		a.log.Info("Package version already exists")
		return models.PackageAlreadyExists, nil
	}

	err = a.content.Save(ctx, pkg, bundle.Package, bundle.Manifest, optional(bundle.Readme), optional(bundle.Icon))
	if err != nil {
		return 0, a.fatal(models.StageContent, pkg, err)
	}

	if err := a.metadata.Add(ctx, pkg); err != nil {
		if errors.Is(err, metadata.ErrAlreadyExists) {
			a.log.Warn("Lost race to a concurrent push of the same version; stored content left in place")
			return models.PackageAlreadyExists, nil
		}
		return 0, a.fatal(models.StageMetadata, pkg, err)
	}

	if err := a.search.Index(ctx, pkg); err != nil {
		return 0, a.fatal(models.StageSearch, pkg, err)
	}

	a.enforceRetention(ctx, pkg)

	a.log.Info("Package ingested")
	return models.Success, nil
}

func (a *attempt) enforceRetention(ctx context.Context, pkg *models.PackageDescriptor) {
	envelope := a.snapshot.Retention
	if a.retention == nil || !envelope.Enabled() {
		return
	}

	deleted, err := a.retention.DeleteOldVersions(ctx, pkg,
		envelope.MaxMajor, envelope.MaxMinor, envelope.MaxPatch, envelope.MaxPrerelease)
	if err != nil {
		a.log.WithField("stage", models.StageRetention).Warnf("Retention failed: %v", err)
		return
	}
	if deleted > 0 {
		a.log.Infof("Retention deleted %d old version(s)", deleted)
	}
}

// fatal logs an infrastructure fault and wraps it for the caller
func (a *attempt) fatal(stage models.Stage, pkg *models.PackageDescriptor, err error) error {
	ingestErr := &models.IngestError{Stage: stage, Err: err}
	if pkg != nil {
		ingestErr.Package = pkg.ID
		ingestErr.Version = pkg.NormalizedVersion()
	}
	a.log.WithField("stage", stage).Errorf("Ingestion failed: %v", err)
	return ingestErr
}

// optional keeps a nil spool file from becoming a non-nil io.Reader
func optional(f *spool.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
