// Package archive writes feed packages: tar streams with a package.yaml
// manifest, optionally compressed.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ralt/pkgfeed/internal/utils"
)

// Entry is a file to place in a package
type Entry struct {
	Name string
	Data []byte
}

// Write writes entries as a tar stream compressed with c
func Write(w io.Writer, c utils.Compression, entries ...Entry) error {
	cw, err := utils.NewCompressWriter(w, c)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	for _, e := range entries {
		if err := addTarFile(tw, e.Name, e.Data); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

// Bytes returns the package built from entries
func Bytes(c utils.Compression, entries ...Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, c, entries...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackDir packages every regular file below dir, with names relative to dir
func PackDir(dir string, w io.Writer, c utils.Compression) error {
	var entries []Entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		entries = append(entries, Entry{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return Write(w, c, entries...)
}

// addTarFile adds a file to a tar archive
func addTarFile(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Unix(0, 0),
		Format:  tar.FormatUSTAR,
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err := tw.Write(data)
	return err
}
