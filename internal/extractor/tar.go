package extractor

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/ralt/pkgfeed/internal/utils"
)

// extractTar parses a (possibly compressed) tar artifact. The manifest is
// located in a first pass; the sub-resources it names are spooled in a
// second pass over a fresh decompressor.
func extractTar(ctx context.Context, f *spool.File, c utils.Compression, arena *spool.Arena) (*parsedArtifact, error) {
	var manifestName string
	var manifestData []byte

	err := walkTar(f, c, func(name string, r io.Reader) (bool, error) {
		if name != ManifestFile && name != PKGINFOFile {
			return false, nil
		}
		data, err := io.ReadAll(io.LimitReader(r, maxManifestSize+1))
		if err != nil {
			return false, invalid("truncated %s: %v", name, err)
		}
		if len(data) > maxManifestSize {
			return false, invalid("%s exceeds %d bytes", name, maxManifestSize)
		}
		manifestName, manifestData = name, data
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if manifestName == "" {
		return nil, invalid("no %s or %s entry found", ManifestFile, PKGINFOFile)
	}

	parsed := &parsedArtifact{}
	var readmeNames, iconNames []string
	requireReadme, requireIcon := false, false

	switch manifestName {
	case ManifestFile:
		m, err := ParseManifest(manifestData)
		if err != nil {
			return nil, invalid("%v", err)
		}
		if parsed.descriptor, err = m.descriptor(); err != nil {
			return nil, err
		}
		readmeNames, requireReadme = entryNames(m.Readme, DefaultReadme)
		iconNames, requireIcon = entryNames(m.Icon, DefaultIcon)
	case PKGINFOFile:
		if parsed.descriptor, err = parsePKGINFO(manifestData); err != nil {
			return nil, err
		}
		readmeNames = []string{"README", "README.md"}
	}

	if parsed.manifest, err = arena.Spool(ctx, "manifest", bytes.NewReader(manifestData)); err != nil {
		return nil, err
	}

	if err := f.Rewind(); err != nil {
		return nil, err
	}

	var spoolErr error
	err = walkTar(f, c, func(name string, r io.Reader) (bool, error) {
		switch {
		case parsed.readme == nil && matchesEntry(name, readmeNames):
			parsed.readme, spoolErr = arena.Spool(ctx, "readme", r)
		case parsed.icon == nil && matchesEntry(name, iconNames):
			parsed.icon, spoolErr = arena.Spool(ctx, "icon", r)
		default:
			return false, nil
		}
		if spoolErr != nil {
			spoolErr = entryError(spoolErr)
			return true, spoolErr
		}
		return parsed.readme != nil && (parsed.icon != nil || len(iconNames) == 0), nil
	})
	if spoolErr != nil {
		return nil, spoolErr
	}
	if err != nil {
		return nil, err
	}

	if requireReadme && parsed.readme == nil {
		return nil, invalid("readme entry %q not found", readmeNames[0])
	}
	if requireIcon && parsed.icon == nil {
		return nil, invalid("icon entry %q not found", iconNames[0])
	}

	return parsed, nil
}

// walkTar calls fn for each regular file in the archive until fn reports
// done. Archive errors are reported as invalid packages.
func walkTar(f *spool.File, c utils.Compression, fn func(name string, r io.Reader) (bool, error)) error {
	r, done, err := utils.NewDecompressReader(f, c)
	if err != nil {
		return invalid("failed to open %s stream: %v", c, err)
	}
	defer done()

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return invalid("malformed archive: %v", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		stop, err := fn(cleanEntryName(header.Name), tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// entryNames returns the candidate names of a sub-resource and whether the
// manifest explicitly required it
func entryNames(explicit, fallback string) ([]string, bool) {
	if explicit != "" {
		return []string{cleanEntryName(explicit)}, true
	}
	return []string{fallback}, false
}

func matchesEntry(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

func cleanEntryName(name string) string {
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// entryError reports a failed read of an archive member as an invalid
// package. Spool write failures and cancellation pass through.
func entryError(err error) error {
	var readErr *spool.ReadError
	if errors.As(err, &readErr) {
		return invalid("truncated %s entry: %v", readErr.Name, readErr.Err)
	}
	return err
}
