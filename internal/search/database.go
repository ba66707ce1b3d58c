package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/database"
	"github.com/ralt/pkgfeed/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_index (
	id_key TEXT NOT NULL,
	version_key TEXT NOT NULL,
	id TEXT NOT NULL,
	version TEXT NOT NULL,
	is_prerelease BOOLEAN NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	terms TEXT NOT NULL,
	PRIMARY KEY (id_key, version_key)
)`

// DatabaseIndex keeps the index in a SQL table next to the metadata
type DatabaseIndex struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewDatabaseIndex creates the index and its table
func NewDatabaseIndex(ctx context.Context, db *database.DB) (*DatabaseIndex, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to migrate search schema: %w", err)
	}
	return &DatabaseIndex{db: db.DB, dialect: db.Dialect}, nil
}

// Index upserts a package version
func (d *DatabaseIndex) Index(ctx context.Context, pkg *models.PackageDescriptor) error {
	query := d.dialect.Rebind(`INSERT INTO search_index (id_key, version_key, id, version, is_prerelease, title, description, terms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id_key, version_key) DO UPDATE SET
			id = excluded.id, version = excluded.version, is_prerelease = excluded.is_prerelease,
			title = excluded.title, description = excluded.description, terms = excluded.terms`)

	version := pkg.NormalizedVersion()
	_, err := d.db.ExecContext(ctx, query,
		pkg.Key(), strings.ToLower(version), pkg.ID, version, pkg.IsPrerelease,
		pkg.Title, pkg.Description, terms(pkg))
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", pkg, err)
	}
	return nil
}

// Remove deletes a package version from the index
func (d *DatabaseIndex) Remove(ctx context.Context, id, version string) error {
	query := d.dialect.Rebind(`DELETE FROM search_index WHERE id_key = ? AND version_key = ?`)
	_, err := d.db.ExecContext(ctx, query, models.NormalizeID(id), strings.ToLower(version))
	return err
}

// Search returns packages whose id, title, description, tags or authors
// contain query, ordered by id
func (d *DatabaseIndex) Search(ctx context.Context, query string, includePrerelease bool) ([]Result, error) {
	q := d.dialect.Rebind(`SELECT id, version, is_prerelease, title, description FROM search_index
		WHERE terms LIKE ? ORDER BY id_key`)

	rows, err := d.db.QueryContext(ctx, q, "%"+strings.ToLower(query)+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Result)
	latest := make(map[string]*semver.Version)
	var order []string

	for rows.Next() {
		var id, version, title, description string
		var prerelease bool
		if err := rows.Scan(&id, &version, &prerelease, &title, &description); err != nil {
			return nil, err
		}
		if prerelease && !includePrerelease {
			continue
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			continue
		}

		key := models.NormalizeID(id)
		r, ok := byID[key]
		if !ok {
			r = &Result{ID: id}
			byID[key] = r
			order = append(order, key)
		}
		r.Versions = append(r.Versions, version)
		if cur := latest[key]; cur == nil || v.GreaterThan(cur) {
			latest[key] = v
			r.LatestVersion, r.Title, r.Description = version, title, description
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(order))
	for _, key := range order {
		r := byID[key]
		sort.Slice(r.Versions, func(i, j int) bool {
			return semver.MustParse(r.Versions[i]).LessThan(semver.MustParse(r.Versions[j]))
		})
		results = append(results, *r)
	}
	return results, nil
}

// terms is the lower-cased text a package is matched against
func terms(pkg *models.PackageDescriptor) string {
	parts := []string{pkg.ID, pkg.Title, pkg.Description}
	parts = append(parts, pkg.Tags...)
	parts = append(parts, pkg.Authors...)
	return strings.ToLower(strings.Join(parts, " "))
}
