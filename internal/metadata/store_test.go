package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/semver/v3"
	"github.com/lib/pq"
	"github.com/ralt/pkgfeed/internal/database"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.Open(context.Background(), database.SQLite, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(context.Background(), db)
	require.NoError(t, err)
	return store
}

func descriptor(id, version string, published time.Time) *models.PackageDescriptor {
	v := semver.MustParse(version)
	return &models.PackageDescriptor{
		ID:           id,
		Version:      v,
		IsPrerelease: v.Prerelease() != "",
		Published:    published,
		Authors:      []string{"alice"},
		Dependencies: []string{"dep"},
		Format:       "tar.gz",
		Size:         42,
		SHA256:       "abc",
		Metadata:     map[string]string{"release": "1"},
	}
}

func TestSQLiteAddGetExists(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	exists, err := store.Exists(ctx, "Demo", "1.0.0")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Add(ctx, descriptor("Demo", "1.0.0-Beta", now)))

	// Identity is case-insensitive
	exists, err = store.Exists(ctx, "DEMO", "1.0.0-beta")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Get(ctx, "demo", "1.0.0-BETA")
	require.NoError(t, err)
	assert.Equal(t, "Demo", got.ID)
	assert.Equal(t, "1.0.0-Beta", got.Version.String())
	assert.True(t, got.IsPrerelease)
	assert.True(t, now.Equal(got.Published))
	assert.Equal(t, []string{"alice"}, got.Authors)
	assert.Empty(t, got.Tags)
	assert.Equal(t, "1", got.Metadata["release"])
	assert.Equal(t, int64(42), got.Size)

	_, err = store.Get(ctx, "demo", "9.9.9")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteAddDuplicate(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, descriptor("Demo", "1.0.0", time.Now())))
	err := store.Add(ctx, descriptor("demo", "1.0.0", time.Now()))
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestSQLiteConcurrentAddsHaveOneWinner(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Add(ctx, descriptor("race", "1.0.0", time.Now()))
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyExists):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, losses)
}

func TestSQLiteHardDeleteAndVersions(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, descriptor("demo", "1.0.0", base)))
	require.NoError(t, store.Add(ctx, descriptor("demo", "1.1.0", base.Add(time.Hour))))
	require.NoError(t, store.Add(ctx, descriptor("other", "1.0.0", base)))

	versions, err := store.Versions(ctx, "DEMO")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0.0", versions[0].Version.String())
	assert.Equal(t, "1.1.0", versions[1].Version.String())

	require.NoError(t, store.HardDelete(ctx, "Demo", "1.0.0"))
	require.NoError(t, store.HardDelete(ctx, "Demo", "1.0.0"))

	versions, err = store.Versions(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.1.0", versions[0].Version.String())
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS packages")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLStore(context.Background(), &database.DB{DB: db, Dialect: database.Postgres})
	require.NoError(t, err)
	return store, mock
}

func TestPostgresExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM packages WHERE id_key = $1 AND version_key = $2")).
		WithArgs("demo", "1.0.0-rc.1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := store.Exists(context.Background(), "Demo", "1.0.0-RC.1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO packages")).
		WithArgs("demo", "1.0.0", "Demo", "1.0.0", false, false, false,
			sqlmock.AnyArg(), "", "", `["alice"]`, "", "", `[]`, `["dep"]`,
			"tar.gz", int64(42), "abc", "", `{"release":"1"}`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Add(context.Background(), descriptor("Demo", "1.0.0", time.Now()))
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddOtherFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO packages")).
		WillReturnError(&pq.Error{Code: "53300", Message: "too many connections"})

	err := store.Add(context.Background(), descriptor("Demo", "1.0.0", time.Now()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}
