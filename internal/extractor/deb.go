package extractor

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/ralt/pkgfeed/internal/utils"
)

const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60
)

// extractDeb parses a Debian package. The control file is the manifest.
func extractDeb(ctx context.Context, f *spool.File, arena *spool.Arena) (*parsedArtifact, error) {
	control, err := extractControl(f)
	if err != nil {
		return nil, err
	}

	pkg, err := parseControl(control)
	if err != nil {
		return nil, err
	}

	manifest, err := arena.Spool(ctx, "manifest", bytes.NewReader(control))
	if err != nil {
		return nil, err
	}

	return &parsedArtifact{descriptor: pkg, manifest: manifest}, nil
}

// extractControl extracts the control file from a .deb package
func extractControl(r io.ReadSeeker) ([]byte, error) {
	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != arMagic {
		return nil, invalid("not an ar archive")
	}

	// Read ar archive entries
	for {
		arHeader := make([]byte, arHeaderSize)
		_, err := io.ReadFull(r, arHeader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalid("failed to read ar header: %v", err)
		}

		// Name is space-padded and may carry a trailing slash
		filename := strings.TrimRight(strings.TrimSpace(string(arHeader[0:16])), "/")

		size, err := strconv.ParseInt(strings.TrimSpace(string(arHeader[48:58])), 10, 64)
		if err != nil || size < 0 {
			return nil, invalid("bad ar member size for %s", filename)
		}

		if strings.HasPrefix(filename, "control.tar") {
			if size > maxManifestSize*16 {
				return nil, invalid("%s is too large", filename)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, invalid("truncated %s: %v", filename, err)
			}
			return extractControlFromTar(data, filename)
		}

		// Members are aligned to 2-byte boundaries
		skip := size + size%2
		if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
			return nil, err
		}
	}

	return nil, invalid("control.tar not found in package")
}

// extractControlFromTar extracts the control file from control.tar*
func extractControlFromTar(data []byte, filename string) ([]byte, error) {
	compression := utils.CompressionNone
	switch {
	case strings.HasSuffix(filename, ".gz"):
		compression = utils.CompressionGzip
	case strings.HasSuffix(filename, ".xz"):
		compression = utils.CompressionXz
	case strings.HasSuffix(filename, ".zst"):
		compression = utils.CompressionZstd
	}

	r, done, err := utils.NewDecompressReader(bytes.NewReader(data), compression)
	if err != nil {
		return nil, invalid("failed to open %s: %v", filename, err)
	}
	defer done()

	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalid("malformed %s: %v", filename, err)
		}

		if header.Name == "./control" || header.Name == "control" {
			data, err := io.ReadAll(io.LimitReader(tarReader, maxManifestSize))
			if err != nil {
				return nil, invalid("truncated control file in %s: %v", filename, err)
			}
			return data, nil
		}
	}

	return nil, invalid("control file not found in %s", filename)
}

// parseControl parses the Debian control file format
func parseControl(data []byte) (*models.PackageDescriptor, error) {
	fields := make(map[string]string)
	var order []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var currentKey string
	var currentValue strings.Builder

	flush := func() {
		if currentKey != "" {
			fields[currentKey] = currentValue.String()
			order = append(order, currentKey)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Continuation lines start with whitespace
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			currentValue.WriteString("\n")
			currentValue.WriteString(strings.TrimSpace(line))
			continue
		}

		flush()
		currentKey = ""

		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			currentKey = strings.TrimSpace(parts[0])
			currentValue.Reset()
			currentValue.WriteString(strings.TrimSpace(parts[1]))
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, invalid("failed to read control file: %v", err)
	}

	pkg := &models.PackageDescriptor{
		Metadata: make(map[string]string),
	}

	for _, key := range order {
		value := fields[key]
		switch key {
		case "Package":
			pkg.ID = value
		case "Version":
			// split below
		case "Description":
			// First line is the synopsis
			title, rest, _ := strings.Cut(value, "\n")
			pkg.Title = title
			pkg.Description = strings.TrimSpace(rest)
			if pkg.Description == "" {
				pkg.Description = title
			}
		case "Maintainer":
			pkg.Authors = append(pkg.Authors, value)
		case "Homepage":
			pkg.Homepage = value
		case "Section":
			pkg.Tags = append(pkg.Tags, value)
		case "Depends":
			for _, dep := range strings.Split(value, ",") {
				if dep = strings.TrimSpace(dep); dep != "" {
					pkg.Dependencies = append(pkg.Dependencies, dep)
				}
			}
		default:
			pkg.Metadata[key] = value
		}
	}

	version, revision, epoch := splitDebianVersion(fields["Version"])
	if revision != "" {
		pkg.Metadata["release"] = revision
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

// splitDebianVersion splits "[epoch:]upstream[-revision]"
func splitDebianVersion(raw string) (upstream, revision, epoch string) {
	upstream = raw
	if i := strings.Index(upstream, ":"); i > 0 {
		epoch, upstream = upstream[:i], upstream[i+1:]
	}
	if i := strings.LastIndex(upstream, "-"); i > 0 {
		upstream, revision = upstream[:i], upstream[i+1:]
	}
	return upstream, revision, epoch
}
