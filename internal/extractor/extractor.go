// Package extractor parses uploaded artifacts into a package descriptor
// and a bundle of spooled sub-resources.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/scanner"
	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/ralt/pkgfeed/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrInvalidPackage wraps every reason an upload cannot be parsed
var ErrInvalidPackage = errors.New("invalid package")

// maxManifestSize bounds how much of a manifest entry is read into memory
const maxManifestSize = 1 << 20

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]{0,127}$`)

// Bundle holds the spooled streams of one artifact. The files are owned by
// the arena they were spooled into.
type Bundle struct {
	Package  *spool.File
	Manifest *spool.File
	Readme   *spool.File // nil when absent
	Icon     *spool.File // nil when absent
}

// Extractor parses uploaded artifacts
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract spools r into arena and parses it. Parse failures wrap
// ErrInvalidPackage; spooling failures (including cancellation) do not.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, arena *spool.Arena) (*models.PackageDescriptor, *Bundle, error) {
	hasher := utils.NewHasher()
	pkgFile, err := arena.Spool(ctx, "package", r, hasher)
	if err != nil {
		return nil, nil, err
	}
	checksums := hasher.Sum()

	format, err := scanner.DetectReader(pkgFile)
	if err != nil {
		return nil, nil, invalid("failed to read header: %v", err)
	}
	if err := pkgFile.Rewind(); err != nil {
		return nil, nil, err
	}

	logrus.Debugf("Detected %s artifact (%d bytes)", format, checksums.Size)

	var parsed *parsedArtifact
	switch format {
	case scanner.FormatTar:
		parsed, err = extractTar(ctx, pkgFile, utils.CompressionNone, arena)
	case scanner.FormatGzip:
		parsed, err = extractTar(ctx, pkgFile, utils.CompressionGzip, arena)
	case scanner.FormatZstd:
		parsed, err = extractTar(ctx, pkgFile, utils.CompressionZstd, arena)
	case scanner.FormatXz:
		parsed, err = extractTar(ctx, pkgFile, utils.CompressionXz, arena)
	case scanner.FormatDeb:
		parsed, err = extractDeb(ctx, pkgFile, arena)
	case scanner.FormatRpm:
		parsed, err = extractRPM(ctx, pkgFile, arena)
	default:
		return nil, nil, invalid("unrecognized artifact format")
	}
	if err != nil {
		return nil, nil, err
	}

	if err := pkgFile.Rewind(); err != nil {
		return nil, nil, err
	}

	pkg := parsed.descriptor
	if err := validate(pkg); err != nil {
		return nil, nil, err
	}

	pkg.Format = format.String()
	pkg.Size = checksums.Size
	pkg.SHA256 = checksums.SHA256
	pkg.SHA512 = checksums.SHA512
	pkg.IsPrerelease = pkg.Version.Prerelease() != ""
	pkg.HasReadme = parsed.readme != nil
	pkg.HasEmbeddedIcon = parsed.icon != nil

	return pkg, &Bundle{
		Package:  pkgFile,
		Manifest: parsed.manifest,
		Readme:   parsed.readme,
		Icon:     parsed.icon,
	}, nil
}

// parsedArtifact is what a format-specific parser yields
type parsedArtifact struct {
	descriptor *models.PackageDescriptor
	manifest   *spool.File
	readme     *spool.File
	icon       *spool.File
}

func validate(pkg *models.PackageDescriptor) error {
	if pkg.ID == "" {
		return invalid("package id is missing")
	}
	if !validID.MatchString(pkg.ID) {
		return invalid("package id %q is not valid", pkg.ID)
	}
	if pkg.Version == nil {
		return invalid("package version is missing")
	}
	return nil
}

// parseVersion parses a version, wrapping failures as invalid packages
func parseVersion(raw string) (*semver.Version, error) {
	if raw == "" {
		return nil, invalid("package version is missing")
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, invalid("version %q is not a semantic version: %v", raw, err)
	}
	return v, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPackage, fmt.Sprintf(format, args...))
}
