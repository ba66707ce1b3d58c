package models

import (
	"fmt"
	"strings"
)

// OverwritePolicy governs whether an existing (id, version) may be replaced
type OverwritePolicy int

const (
	Disallow OverwritePolicy = iota
	AllowPrereleaseOnly
	AllowAny
)

// String returns the configuration spelling of the policy
func (p OverwritePolicy) String() string {
	switch p {
	case Disallow:
		return "disallow"
	case AllowPrereleaseOnly:
		return "prerelease"
	case AllowAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseOverwritePolicy parses a configuration value. Empty means Disallow.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disallow", "false":
		return Disallow, nil
	case "prerelease", "prerelease-only", "allowprereleaseonly":
		return AllowPrereleaseOnly, nil
	case "any", "allow", "true", "allowany":
		return AllowAny, nil
	default:
		return Disallow, fmt.Errorf("unknown overwrite policy %q", s)
	}
}

// Allows reports whether an existing package may be replaced
func (p OverwritePolicy) Allows(isPrerelease bool) bool {
	switch p {
	case AllowAny:
		return true
	case AllowPrereleaseOnly:
		return isPrerelease
	default:
		return false
	}
}

// RetentionEnvelope limits how many versions of each tier are kept.
// A nil limit leaves that tier unbounded.
type RetentionEnvelope struct {
	MaxMajor      *int
	MaxMinor      *int
	MaxPatch      *int
	MaxPrerelease *int
}

// Enabled reports whether any bound is set
func (r RetentionEnvelope) Enabled() bool {
	return r.MaxMajor != nil || r.MaxMinor != nil || r.MaxPatch != nil || r.MaxPrerelease != nil
}

// Snapshot is the per-attempt view of the hot-reloadable configuration
type Snapshot struct {
	Overwrite OverwritePolicy
	Retention RetentionEnvelope
}
