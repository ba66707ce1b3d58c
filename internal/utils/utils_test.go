package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := strings.Repeat("pkgfeed ", 256)

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionXz} {
		t.Run(string(c), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewCompressWriter(&buf, c)
			require.NoError(t, err)
			_, err = io.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, done, err := NewDecompressReader(&buf, c)
			require.NoError(t, err)
			defer done()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher()
	_, err := io.Copy(h, strings.NewReader("abc"))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("abc"))
	got := h.Sum()
	assert.Equal(t, hex.EncodeToString(sum[:]), got.SHA256)
	assert.Equal(t, int64(3), got.Size)
	assert.Len(t, got.SHA512, 128)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "file.bin")

	require.NoError(t, WriteFileAtomic(path, strings.NewReader("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, strings.NewReader("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"":     CompressionNone,
		"none": CompressionNone,
		"GZIP": CompressionGzip,
		"gz":   CompressionGzip,
		"zstd": CompressionZstd,
		"xz":   CompressionXz,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("bzip2")
	assert.Error(t, err)
}

func TestRemoveDirIfEmpty(t *testing.T) {
	root := t.TempDir()

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	require.NoError(t, RemoveDirIfEmpty(empty))
	assert.NoDirExists(t, empty)

	full := filepath.Join(root, "full")
	require.NoError(t, os.Mkdir(full, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "a"), []byte("a"), 0644))
	require.NoError(t, RemoveDirIfEmpty(full))
	assert.DirExists(t, full)

	assert.NoError(t, RemoveDirIfEmpty(filepath.Join(root, "missing")))
}

func TestRemoveEmptyDirToleratesNewEntries(t *testing.T) {
	// a concurrent writer may add an entry between listing and removal
	dir := filepath.Join(t.TempDir(), "busy")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late"), []byte("x"), 0644))

	require.NoError(t, removeEmptyDir(dir))
	assert.FileExists(t, filepath.Join(dir, "late"))
	assert.NoError(t, removeEmptyDir(filepath.Join(t.TempDir(), "gone")))
}
