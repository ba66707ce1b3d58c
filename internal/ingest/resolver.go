package ingest

import (
	"context"
	"fmt"

	"github.com/ralt/pkgfeed/internal/models"
)

// Decision is the resolver's verdict on an incoming (id, version)
type Decision int

const (
	Proceed Decision = iota
	Reject
	ProceedAfterPurge
)

// String returns the string representation of Decision
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "Proceed"
	case Reject:
		return "Reject"
	case ProceedAfterPurge:
		return "ProceedAfterPurge"
	default:
		return "Unknown"
	}
}

// Decide applies an overwrite policy to an existence check
func Decide(exists bool, policy models.OverwritePolicy, isPrerelease bool) Decision {
	switch {
	case !exists:
		return Proceed
	case policy.Allows(isPrerelease):
		return ProceedAfterPurge
	default:
		return Reject
	}
}

// resolve checks for an existing version and purges it when the policy
// allows replacing it. Metadata goes first so the version is never visible
// without content.
func (a *attempt) resolve(ctx context.Context, pkg *models.PackageDescriptor) (Decision, error) {
	version := pkg.NormalizedVersion()

	exists, err := a.metadata.Exists(ctx, pkg.ID, version)
	if err != nil {
		return Reject, a.fatal(models.StageResolve, pkg, fmt.Errorf("failed to check existing package: %w", err))
	}

	decision := Decide(exists, a.snapshot.Overwrite, pkg.IsPrerelease)
	if decision != ProceedAfterPurge {
		return decision, nil
	}

	a.log.Infof("Replacing existing version (overwrite policy %s)", a.snapshot.Overwrite)
	if err := a.metadata.HardDelete(ctx, pkg.ID, version); err != nil {
		return Reject, a.fatal(models.StagePurge, pkg, fmt.Errorf("failed to delete existing metadata: %w", err))
	}
	if err := a.content.Delete(ctx, pkg.ID, version); err != nil {
		return Reject, a.fatal(models.StagePurge, pkg, fmt.Errorf("failed to delete existing content: %w", err))
	}
	return decision, nil
}
