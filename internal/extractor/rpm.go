package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/sassoftware/go-rpmutils"
)

// extractRPM parses an RPM package. RPMs carry no manifest entry, so the
// manifest stream is the descriptor rendered as package.yaml.
func extractRPM(ctx context.Context, f *spool.File, arena *spool.Arena) (*parsedArtifact, error) {
	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return nil, invalid("failed to read RPM: %v", err)
	}

	version, err := parseVersion(getStringTag(rpm, rpmutils.VERSION))
	if err != nil {
		return nil, err
	}

	pkg := &models.PackageDescriptor{
		ID:           getStringTag(rpm, rpmutils.NAME),
		Version:      version,
		Title:        getStringTag(rpm, rpmutils.SUMMARY),
		Description:  getStringTag(rpm, rpmutils.DESCRIPTION),
		Homepage:     getStringTag(rpm, rpmutils.URL),
		License:      getStringTag(rpm, rpmutils.LICENSE),
		Dependencies: getStringSliceTag(rpm, rpmutils.REQUIRENAME),
		Metadata:     make(map[string]string),
	}
	if packager := getStringTag(rpm, rpmutils.PACKAGER); packager != "" {
		pkg.Authors = []string{packager}
	}
	if group := getStringTag(rpm, rpmutils.GROUP); group != "" {
		pkg.Tags = []string{group}
	}
	if release := getStringTag(rpm, rpmutils.RELEASE); release != "" {
		pkg.Metadata["release"] = release
	}
	if vendor := getStringTag(rpm, rpmutils.VENDOR); vendor != "" {
		pkg.Metadata["vendor"] = vendor
	}

	manifestData, err := manifestFromDescriptor(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to render RPM manifest: %w", err)
	}

	manifest, err := arena.Spool(ctx, "manifest", bytes.NewReader(manifestData))
	if err != nil {
		return nil, err
	}

	return &parsedArtifact{descriptor: pkg, manifest: manifest}, nil
}

// getStringTag safely gets a string tag from RPM
func getStringTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	default:
		return fmt.Sprintf("%v", v)
	}

	return ""
}

// getStringSliceTag safely gets a string slice tag from RPM
func getStringSliceTag(rpm *rpmutils.Rpm, tag int) []string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return nil
	}
	slice, ok := val.([]string)
	if !ok {
		return nil
	}

	var result []string
	for _, s := range slice {
		// rpmlib(...) requirements are internal to rpm itself
		s = strings.TrimSpace(s)
		if s != "" && !strings.HasPrefix(s, "rpmlib(") {
			result = append(result, s)
		}
	}
	return result
}
