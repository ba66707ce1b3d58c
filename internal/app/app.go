// Package app builds the ingestion service and its backends from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ralt/pkgfeed/internal/config"
	"github.com/ralt/pkgfeed/internal/database"
	"github.com/ralt/pkgfeed/internal/ingest"
	"github.com/ralt/pkgfeed/internal/metadata"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/retention"
	"github.com/ralt/pkgfeed/internal/search"
	"github.com/ralt/pkgfeed/internal/signer"
	"github.com/ralt/pkgfeed/internal/storage"
	"github.com/ralt/pkgfeed/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// App owns the backends of a running pkgfeed instance
type App struct {
	Config   *config.Config
	Policy   *config.Live
	DB       *database.DB
	Metadata *metadata.SQLStore
	Content  *storage.PackageStore
	Signer   signer.Signer
	Search   search.Index
	Service  *ingest.Service
}

// New connects every backend named by the configuration in v
func New(ctx context.Context, v *viper.Viper) (*App, error) {
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	policy, err := config.NewLive(v)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Policy: policy}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	dialect, err := database.ParseDialect(cfg.Database.Type)
	if err != nil {
		return configError(err)
	}
	if a.DB, err = database.Open(ctx, dialect, cfg.Database.ConnectionString); err != nil {
		return err
	}
	if a.Metadata, err = metadata.NewSQLStore(ctx, a.DB); err != nil {
		return err
	}

	backend, err := storage.NewBackend(ctx, storage.Config{
		Type:     cfg.Storage.Type,
		Path:     cfg.Storage.Path,
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		Prefix:   cfg.Storage.Prefix,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}

	var pkgSigner signer.Signer
	if cfg.Signing.GPGKey != "" {
		gpgSigner, err := signer.NewGPGSigner(cfg.Signing.GPGKey, cfg.Signing.GPGPassphrase)
		if err != nil {
			return fmt.Errorf("failed to initialize GPG signer: %w", err)
		}
		pkgSigner = gpgSigner
		a.Signer = gpgSigner
		logrus.Info("GPG signer initialized")
	}
	a.Content = storage.NewPackageStore(backend, pkgSigner)

	a.Search, err = search.NewIndex(ctx, search.Config{
		Type:    cfg.Search.Type,
		Address: cfg.Search.Address,
		Prefix:  cfg.Search.Prefix,
	}, a.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize %s search index: %w", cfg.Search.Type, err)
	}

	if cfg.SpoolDir != "" {
		if err := utils.EnsureDir(cfg.SpoolDir); err != nil {
			return fmt.Errorf("failed to create spool directory: %w", err)
		}
	}

	a.Service = ingest.New(ingest.Dependencies{
		Metadata:  a.Metadata,
		Content:   a.Content,
		Search:    a.Search,
		Retention: retention.NewEnforcer(a.Metadata, a.Content, a.Search),
		Config:    a.Policy,
		SpoolDir:  cfg.SpoolDir,
	})

	logrus.Debugf("Using %s metadata, %s storage and %s search", dialect, cfg.Storage.Type, cfg.Search.Type)
	return nil
}

// Close releases the backends
func (a *App) Close() error {
	var errs []error
	if closer, ok := a.Search.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func configError(err error) error {
	return &models.IngestError{Stage: models.StageConfig, Err: err}
}
