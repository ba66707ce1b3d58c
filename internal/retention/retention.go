// Package retention deletes package versions that fall outside the
// configured retention envelope.
package retention

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/sirupsen/logrus"
)

// VersionStore lists and removes package metadata
type VersionStore interface {
	Versions(ctx context.Context, id string) ([]*models.PackageDescriptor, error)
	HardDelete(ctx context.Context, id, version string) error
}

// ContentDeleter removes stored package content
type ContentDeleter interface {
	Delete(ctx context.Context, id, version string) error
}

// IndexRemover removes a version from the search index
type IndexRemover interface {
	Remove(ctx context.Context, id, version string) error
}

// Enforcer applies retention limits to a package
type Enforcer struct {
	metadata VersionStore
	content  ContentDeleter
	index    IndexRemover
}

// NewEnforcer creates an enforcer. index may be nil.
func NewEnforcer(metadata VersionStore, content ContentDeleter, index IndexRemover) *Enforcer {
	return &Enforcer{metadata: metadata, content: content, index: index}
}

// DeleteOldVersions deletes every version of pkg.ID outside the limits
// and returns how many were deleted. pkg itself is never deleted. The
// first failure aborts.
func (e *Enforcer) DeleteOldVersions(ctx context.Context, pkg *models.PackageDescriptor, maxMajor, maxMinor, maxPatch, maxPrerelease *int) (int, error) {
	versions, err := e.metadata.Versions(ctx, pkg.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions of %s: %w", pkg.ID, err)
	}

	keep := Select(versions, maxMajor, maxMinor, maxPatch, maxPrerelease)

	var doomed []*models.PackageDescriptor
	for _, v := range versions {
		if keep[v.NormalizedVersion()] || strings.EqualFold(v.NormalizedVersion(), pkg.NormalizedVersion()) {
			continue
		}
		doomed = append(doomed, v)
	}
	sort.Slice(doomed, func(i, j int) bool {
		return doomed[i].Version.LessThan(doomed[j].Version)
	})

	deleted := 0
	for _, v := range doomed {
		if err := e.delete(ctx, v); err != nil {
			return deleted, err
		}
		deleted++
		logrus.WithFields(logrus.Fields{
			"package": v.ID,
			"version": v.NormalizedVersion(),
		}).Info("Deleted package version outside retention limits")
	}
	return deleted, nil
}

func (e *Enforcer) delete(ctx context.Context, pkg *models.PackageDescriptor) error {
	version := pkg.NormalizedVersion()

	if err := e.metadata.HardDelete(ctx, pkg.ID, version); err != nil {
		return fmt.Errorf("failed to delete metadata of %s: %w", pkg, err)
	}
	if err := e.content.Delete(ctx, pkg.ID, version); err != nil {
		return fmt.Errorf("failed to delete content of %s: %w", pkg, err)
	}
	if e.index != nil {
		if err := e.index.Remove(ctx, pkg.ID, version); err != nil {
			return fmt.Errorf("failed to remove %s from search index: %w", pkg, err)
		}
	}
	return nil
}

// Select returns the set of versions, keyed by their string form, that
// fall within the limits. A nil limit keeps every group of its tier.
func Select(versions []*models.PackageDescriptor, maxMajor, maxMinor, maxPatch, maxPrerelease *int) map[string]bool {
	all := make([]*semver.Version, 0, len(versions))
	for _, v := range versions {
		if v.Version != nil {
			all = append(all, v.Version)
		}
	}

	keep := make(map[string]bool)
	for _, major := range newest(groupBy(all, func(v *semver.Version) uint64 { return v.Major() }), maxMajor) {
		for _, minor := range newest(groupBy(major, func(v *semver.Version) uint64 { return v.Minor() }), maxMinor) {
			for _, patch := range newest(groupBy(minor, func(v *semver.Version) uint64 { return v.Patch() }), maxPatch) {
				var prereleases []*semver.Version
				for _, v := range patch {
					if v.Prerelease() == "" {
						keep[v.String()] = true
						continue
					}
					prereleases = append(prereleases, v)
				}

				sort.Slice(prereleases, func(i, j int) bool {
					return prereleases[i].GreaterThan(prereleases[j])
				})
				if maxPrerelease != nil && len(prereleases) > *maxPrerelease {
					prereleases = prereleases[:max(*maxPrerelease, 0)]
				}
				for _, v := range prereleases {
					keep[v.String()] = true
				}
			}
		}
	}
	return keep
}

type group struct {
	key      uint64
	versions []*semver.Version
}

func groupBy(versions []*semver.Version, key func(*semver.Version) uint64) []group {
	index := make(map[uint64]int)
	var groups []group
	for _, v := range versions {
		k := key(v)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].versions = append(groups[i].versions, v)
	}
	return groups
}

// newest returns the versions of the limit highest groups
func newest(groups []group, limit *int) [][]*semver.Version {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key > groups[j].key
	})
	if limit != nil && len(groups) > *limit {
		groups = groups[:max(*limit, 0)]
	}

	out := make([][]*semver.Version, len(groups))
	for i, g := range groups {
		out[i] = g.versions
	}
	return out
}
