package retention

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

type memoryStore struct {
	versions map[string]*models.PackageDescriptor
	deleted  []string
	failOn   string
}

func newMemoryStore(versions ...string) *memoryStore {
	s := &memoryStore{versions: make(map[string]*models.PackageDescriptor)}
	for _, v := range versions {
		s.versions[v] = descriptor(v)
	}
	return s
}

func descriptor(version string) *models.PackageDescriptor {
	v := semver.MustParse(version)
	return &models.PackageDescriptor{ID: "demo", Version: v, IsPrerelease: v.Prerelease() != ""}
}

func (s *memoryStore) Versions(ctx context.Context, id string) ([]*models.PackageDescriptor, error) {
	var out []*models.PackageDescriptor
	for _, p := range s.versions {
		out = append(out, p)
	}
	return out, nil
}

func (s *memoryStore) HardDelete(ctx context.Context, id, version string) error {
	if version == s.failOn {
		return errors.New("boom")
	}
	delete(s.versions, version)
	s.deleted = append(s.deleted, version)
	return nil
}

func (s *memoryStore) remaining() []string {
	var out []string
	for v := range s.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

type recorder struct {
	calls []string
}

func (r *recorder) Delete(ctx context.Context, id, version string) error {
	r.calls = append(r.calls, version)
	return nil
}

func (r *recorder) Remove(ctx context.Context, id, version string) error {
	r.calls = append(r.calls, version)
	return nil
}

func TestSelect(t *testing.T) {
	all := []string{
		"1.0.0", "1.1.0", "1.1.1", "1.2.0",
		"2.0.0", "2.0.1", "2.1.0-alpha.1", "2.1.0-alpha.2", "2.1.0-beta.1", "2.1.0",
		"3.0.0-rc.1",
	}
	var versions []*models.PackageDescriptor
	for _, v := range all {
		versions = append(versions, descriptor(v))
	}

	tests := []struct {
		name                                        string
		maxMajor, maxMinor, maxPatch, maxPrerelease *int
		want                                        []string
	}{
		{
			name: "unbounded",
			want: all,
		},
		{
			name:     "newest major",
			maxMajor: intp(1),
			want:     []string{"3.0.0-rc.1"},
		},
		{
			name:     "two majors one minor",
			maxMajor: intp(2),
			maxMinor: intp(1),
			want:     []string{"2.1.0-alpha.1", "2.1.0-alpha.2", "2.1.0-beta.1", "2.1.0", "3.0.0-rc.1"},
		},
		{
			name:          "prereleases bounded within patch",
			maxMajor:      intp(2),
			maxMinor:      intp(1),
			maxPrerelease: intp(1),
			want:          []string{"2.1.0-beta.1", "2.1.0", "3.0.0-rc.1"},
		},
		{
			name:          "one patch per minor",
			maxPatch:      intp(1),
			maxPrerelease: intp(0),
			want:          []string{"1.0.0", "1.1.1", "1.2.0", "2.0.1", "2.1.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keep := Select(versions, tt.maxMajor, tt.maxMinor, tt.maxPatch, tt.maxPrerelease)
			var got []string
			for _, v := range all {
				if keep[v] {
					got = append(got, v)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteOldVersions(t *testing.T) {
	store := newMemoryStore("1.0.0", "1.1.0", "2.0.0", "2.1.0")
	content := &recorder{}
	index := &recorder{}
	e := NewEnforcer(store, content, index)

	n, err := e.DeleteOldVersions(context.Background(), descriptor("2.1.0"), intp(1), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"2.0.0", "2.1.0"}, store.remaining())
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, store.deleted)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, content.calls)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, index.calls)
}

func TestDeleteOldVersionsKeepsIngestedVersion(t *testing.T) {
	store := newMemoryStore("1.0.0", "2.0.0")
	e := NewEnforcer(store, &recorder{}, nil)

	// 1.0.0 is outside the envelope but was just pushed
	n, err := e.DeleteOldVersions(context.Background(), descriptor("1.0.0"), intp(1), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"1.0.0", "2.0.0"}, store.remaining())
}

func TestDeleteOldVersionsAbortsOnFirstError(t *testing.T) {
	store := newMemoryStore("1.0.0", "2.0.0", "3.0.0")
	store.failOn = "1.0.0"
	content := &recorder{}
	e := NewEnforcer(store, content, nil)

	n, err := e.DeleteOldVersions(context.Background(), descriptor("3.0.0"), intp(1), nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, content.calls)
	assert.Equal(t, []string{"1.0.0", "2.0.0", "3.0.0"}, store.remaining())
}
