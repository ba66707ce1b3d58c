package models

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// PackageDescriptor represents a package version with its registry metadata
type PackageDescriptor struct {
	// Identity
	ID      string
	Version *semver.Version

	// Derived flags
	IsPrerelease    bool
	HasReadme       bool
	HasEmbeddedIcon bool

	// Set by the ingestion pipeline, never read from the archive
	Published time.Time

	// Registry metadata
	Title        string
	Description  string
	Authors      []string
	Homepage     string
	License      string
	Tags         []string
	Dependencies []string

	// Artifact information
	Format string
	Size   int64
	SHA256 string
	SHA512 string

	// Format-specific metadata
	Metadata map[string]string
}

// Key returns the lower-cased package ID used for storage and lookups
func (p *PackageDescriptor) Key() string {
	return NormalizeID(p.ID)
}

// NormalizedVersion returns the canonical version string
func (p *PackageDescriptor) NormalizedVersion() string {
	if p.Version == nil {
		return ""
	}
	return p.Version.String()
}

// String returns "id version" for logs
func (p *PackageDescriptor) String() string {
	return p.ID + " " + p.NormalizedVersion()
}

// NormalizeID folds a package ID to its storage key
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
