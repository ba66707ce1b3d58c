package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/database"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *DatabaseIndex {
	t.Helper()
	db, err := database.Open(context.Background(), database.SQLite, filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	index, err := NewDatabaseIndex(context.Background(), db)
	require.NoError(t, err)
	return index
}

func pkg(id, version, description string, tags ...string) *models.PackageDescriptor {
	v := semver.MustParse(version)
	return &models.PackageDescriptor{
		ID:           id,
		Version:      v,
		IsPrerelease: v.Prerelease() != "",
		Description:  description,
		Tags:         tags,
	}
}

func TestDatabaseIndexSearch(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, pkg("Demo", "1.0.0", "first")))
	require.NoError(t, index.Index(ctx, pkg("Demo", "1.10.0", "latest stable")))
	require.NoError(t, index.Index(ctx, pkg("Demo", "2.0.0-beta", "preview")))
	require.NoError(t, index.Index(ctx, pkg("other", "0.1.0", "unrelated", "tools")))

	results, err := index.Search(ctx, "demo", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Demo", results[0].ID)
	assert.Equal(t, "1.10.0", results[0].LatestVersion)
	assert.Equal(t, "latest stable", results[0].Description)
	assert.Equal(t, []string{"1.0.0", "1.10.0"}, results[0].Versions)

	results, err = index.Search(ctx, "demo", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2.0.0-beta", results[0].LatestVersion)

	results, err = index.Search(ctx, "TOOLS", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "other", results[0].ID)
}

func TestDatabaseIndexUpsertAndRemove(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, pkg("demo", "1.0.0", "old")))
	require.NoError(t, index.Index(ctx, pkg("DEMO", "1.0.0", "new")))

	results, err := index.Search(ctx, "demo", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Description)
	assert.Len(t, results[0].Versions, 1)

	require.NoError(t, index.Remove(ctx, "Demo", "1.0.0"))
	require.NoError(t, index.Remove(ctx, "Demo", "1.0.0"))

	results, err = index.Search(ctx, "demo", false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRedisKeys(t *testing.T) {
	r := NewRedisIndex(nil, "")
	assert.Equal(t, "pkgfeed:ids", r.idsKey())
	assert.Equal(t, "pkgfeed:versions:demo", r.versionsKey("Demo"))
	assert.Equal(t, "pkgfeed:pkg:demo:1.0.0-beta", r.packageKey("DEMO", "1.0.0-Beta"))
}

func TestNullIndex(t *testing.T) {
	var index NullIndex
	assert.NoError(t, index.Index(context.Background(), pkg("demo", "1.0.0", "")))
	assert.NoError(t, index.Remove(context.Background(), "demo", "1.0.0"))
}

func TestNewIndex(t *testing.T) {
	ctx := context.Background()

	index, err := NewIndex(ctx, Config{Type: "null"}, nil)
	require.NoError(t, err)
	assert.Equal(t, NullIndex{}, index)

	_, err = NewIndex(ctx, Config{Type: "database"}, nil)
	assert.Error(t, err)

	_, err = NewIndex(ctx, Config{Type: "redis"}, nil)
	assert.Error(t, err)

	_, err = NewIndex(ctx, Config{Type: "elastic"}, nil)
	assert.Error(t, err)
}
