package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	_, cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "database", cfg.Search.Type)
	assert.Equal(t, ":5000", cfg.Server.Listen)
	assert.EqualValues(t, 256<<20, cfg.Server.MaxUploadBytes)

	snapshot, err := cfg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.Disallow, snapshot.Overwrite)
	assert.False(t, snapshot.Retention.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgfeed.yaml")
	writeConfig(t, path, `
overwrite: prerelease
retention:
  max_major: 2
  max_prerelease: 0
database:
  type: postgres
  connection_string: postgres://localhost/pkgfeed
storage:
  type: s3
  bucket: packages
`)
	t.Setenv("PKGFEED_STORAGE_REGION", "eu-west-1")
	t.Setenv("PKGFEED_RETENTION_MAX_PATCH", "4")

	_, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "packages", cfg.Storage.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)

	snapshot, err := cfg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.AllowPrereleaseOnly, snapshot.Overwrite)
	require.NotNil(t, snapshot.Retention.MaxMajor)
	assert.Equal(t, 2, *snapshot.Retention.MaxMajor)
	assert.Nil(t, snapshot.Retention.MaxMinor)
	require.NotNil(t, snapshot.Retention.MaxPatch)
	assert.Equal(t, 4, *snapshot.Retention.MaxPatch)
	require.NotNil(t, snapshot.Retention.MaxPrerelease, "zero is a real bound")
	assert.Equal(t, 0, *snapshot.Retention.MaxPrerelease)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	writeConfig(t, path, "overwrite: sometimes\n")
	_, _, err = Load(path)
	var ingestErr *models.IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, models.StageConfig, ingestErr.Stage)

	writeConfig(t, path, "retention:\n  max_minor: -1\n")
	_, _, err = Load(path)
	require.Error(t, err)
}

func TestLiveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgfeed.yaml")
	writeConfig(t, path, "overwrite: disallow\n")

	v, err := New(path)
	require.NoError(t, err)
	live, err := NewLive(v)
	require.NoError(t, err)

	before := live.Snapshot()
	assert.Equal(t, models.Disallow, before.Overwrite)

	writeConfig(t, path, "overwrite: any\nretention:\n  max_patch: 3\n")
	require.NoError(t, live.Reload())

	after := live.Snapshot()
	assert.Equal(t, models.AllowAny, after.Overwrite)
	require.NotNil(t, after.Retention.MaxPatch)
	assert.Equal(t, 3, *after.Retention.MaxPatch)

	// Earlier snapshots are immutable
	assert.Equal(t, models.Disallow, before.Overwrite)
	assert.Nil(t, before.Retention.MaxPatch)

	writeConfig(t, path, "overwrite: sometimes\n")
	require.Error(t, live.Reload())
	assert.Equal(t, models.AllowAny, live.Snapshot().Overwrite)
}

func TestStatic(t *testing.T) {
	src := Static(models.Snapshot{Overwrite: models.AllowAny})
	assert.Equal(t, models.AllowAny, src.Snapshot().Overwrite)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
