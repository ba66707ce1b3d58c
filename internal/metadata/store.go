// Package metadata is the source of truth for which package versions
// exist. Add is the atomicity boundary of an ingestion: the (id, version)
// primary key serializes concurrent pushes.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/database"
	"github.com/ralt/pkgfeed/internal/models"
)

var (
	// ErrAlreadyExists is returned by Add when (id, version) is taken
	ErrAlreadyExists = errors.New("package already exists")

	// ErrNotFound is returned when a package version does not exist
	ErrNotFound = errors.New("package not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id_key TEXT NOT NULL,
	version_key TEXT NOT NULL,
	id TEXT NOT NULL,
	version TEXT NOT NULL,
	is_prerelease BOOLEAN NOT NULL,
	has_readme BOOLEAN NOT NULL,
	has_icon BOOLEAN NOT NULL,
	published TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	authors TEXT NOT NULL,
	homepage TEXT NOT NULL,
	license TEXT NOT NULL,
	tags TEXT NOT NULL,
	dependencies TEXT NOT NULL,
	format TEXT NOT NULL,
	size BIGINT NOT NULL,
	sha256 TEXT NOT NULL,
	sha512 TEXT NOT NULL,
	metadata TEXT NOT NULL,
	PRIMARY KEY (id_key, version_key)
)`

// fixed width so that published sorts chronologically as text
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const columns = `id, version, is_prerelease, has_readme, has_icon, published, title, description, authors, homepage, license, tags, dependencies, format, size, sha256, sha512, metadata`

// SQLStore stores package metadata in SQLite or PostgreSQL
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLStore creates the store and its table
func NewSQLStore(ctx context.Context, db *database.DB) (*SQLStore, error) {
	s := &SQLStore{db: db.DB, dialect: db.Dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func versionKey(version string) string {
	return strings.ToLower(version)
}

// Exists reports whether (id, version) is stored
func (s *SQLStore) Exists(ctx context.Context, id, version string) (bool, error) {
	query := s.dialect.Rebind(`SELECT 1 FROM packages WHERE id_key = ? AND version_key = ?`)

	var one int
	err := s.db.QueryRowContext(ctx, query, models.NormalizeID(id), versionKey(version)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts a package version. A duplicate (id, version) returns
// ErrAlreadyExists.
func (s *SQLStore) Add(ctx context.Context, pkg *models.PackageDescriptor) error {
	authors, err := encodeList(pkg.Authors)
	if err != nil {
		return err
	}
	tags, err := encodeList(pkg.Tags)
	if err != nil {
		return err
	}
	deps, err := encodeList(pkg.Dependencies)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(pkg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := s.dialect.Rebind(`INSERT INTO packages (id_key, version_key, ` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		pkg.Key(), versionKey(pkg.NormalizedVersion()),
		pkg.ID, pkg.NormalizedVersion(), pkg.IsPrerelease, pkg.HasReadme, pkg.HasEmbeddedIcon,
		pkg.Published.UTC().Format(timeFormat),
		pkg.Title, pkg.Description, authors, pkg.Homepage, pkg.License, tags, deps,
		pkg.Format, pkg.Size, pkg.SHA256, pkg.SHA512, string(meta),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// HardDelete removes a package version. Deleting a missing version is
// not an error.
func (s *SQLStore) HardDelete(ctx context.Context, id, version string) error {
	query := s.dialect.Rebind(`DELETE FROM packages WHERE id_key = ? AND version_key = ?`)
	_, err := s.db.ExecContext(ctx, query, models.NormalizeID(id), versionKey(version))
	return err
}

// Get returns one package version
func (s *SQLStore) Get(ctx context.Context, id, version string) (*models.PackageDescriptor, error) {
	query := s.dialect.Rebind(`SELECT ` + columns + ` FROM packages WHERE id_key = ? AND version_key = ?`)

	pkg, err := scanPackage(s.db.QueryRowContext(ctx, query, models.NormalizeID(id), versionKey(version)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", id, version, ErrNotFound)
	}
	return pkg, err
}

// Versions returns every stored version of a package, oldest first
func (s *SQLStore) Versions(ctx context.Context, id string) ([]*models.PackageDescriptor, error) {
	query := s.dialect.Rebind(`SELECT ` + columns + ` FROM packages WHERE id_key = ? ORDER BY published`)

	rows, err := s.db.QueryContext(ctx, query, models.NormalizeID(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var packages []*models.PackageDescriptor
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPackage(row rowScanner) (*models.PackageDescriptor, error) {
	var (
		pkg                       models.PackageDescriptor
		version, published        string
		authors, tags, deps, meta string
	)

	err := row.Scan(&pkg.ID, &version, &pkg.IsPrerelease, &pkg.HasReadme, &pkg.HasEmbeddedIcon, &published,
		&pkg.Title, &pkg.Description, &authors, &pkg.Homepage, &pkg.License, &tags, &deps,
		&pkg.Format, &pkg.Size, &pkg.SHA256, &pkg.SHA512, &meta)
	if err != nil {
		return nil, err
	}

	if pkg.Version, err = semver.NewVersion(version); err != nil {
		return nil, fmt.Errorf("stored version %q of %s is invalid: %w", version, pkg.ID, err)
	}
	if pkg.Published, err = time.Parse(timeFormat, published); err != nil {
		return nil, fmt.Errorf("stored timestamp of %s %s is invalid: %w", pkg.ID, version, err)
	}
	if err := json.Unmarshal([]byte(authors), &pkg.Authors); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &pkg.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deps), &pkg.Dependencies); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &pkg.Metadata); err != nil {
		return nil, err
	}

	return &pkg, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}
