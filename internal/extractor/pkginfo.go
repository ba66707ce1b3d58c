package extractor

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
)

// PKGINFOFile is the manifest entry of Alpine and Arch packages
const PKGINFOFile = ".PKGINFO"

// apk "1.2.3-r4", pacman "1.2.3-4"
var releaseSuffix = regexp.MustCompile(`^(.+)-(r?\d+)$`)

// parsePKGINFO parses the Alpine/Arch .PKGINFO key = value format
func parsePKGINFO(data []byte) (*models.PackageDescriptor, error) {
	pkg := &models.PackageDescriptor{
		Metadata: make(map[string]string),
	}

	var rawVersion string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "pkgname":
			pkg.ID = value
		case "pkgver":
			rawVersion = value
		case "pkgdesc":
			pkg.Description = value
		case "url":
			pkg.Homepage = value
		case "license":
			pkg.License = value
		case "packager", "maintainer":
			pkg.Authors = append(pkg.Authors, value)
		case "depend":
			pkg.Dependencies = append(pkg.Dependencies, value)
		case "group":
			pkg.Tags = append(pkg.Tags, value)
		default:
			pkg.Metadata[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, invalid("failed to read %s: %v", PKGINFOFile, err)
	}

	version, release, epoch := splitPackageVersion(rawVersion)
	if release != "" {
		pkg.Metadata["release"] = release
	}
	if epoch != "" {
		pkg.Metadata["epoch"] = epoch
	}

	v, err := parseVersion(version)
	if err != nil {
		return nil, err
	}
	pkg.Version = v

	return pkg, nil
}

// splitPackageVersion splits "epoch:version-release" as used by distro
// package managers
func splitPackageVersion(raw string) (version, release, epoch string) {
	version = raw
	if i := strings.Index(version, ":"); i > 0 {
		epoch, version = version[:i], version[i+1:]
	}
	if m := releaseSuffix.FindStringSubmatch(version); m != nil {
		version, release = m[1], m[2]
	}
	return version, release, epoch
}
