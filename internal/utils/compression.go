package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression names a stream compression
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionXz   Compression = "xz"
)

// ParseCompression parses a compression name
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case CompressionNone, CompressionGzip, CompressionZstd, CompressionXz:
		return c, nil
	case "", "tar":
		return CompressionNone, nil
	case "gz":
		return CompressionGzip, nil
	case "zst":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

// Extension returns the tar suffix for the compression
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	case CompressionXz:
		return ".tar.xz"
	default:
		return ".tar"
	}
}

// NewDecompressReader wraps r in a decompressor. The returned closer must
// be called once the stream is consumed.
func NewDecompressReader(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, func() { gr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	case CompressionNone, "":
		return r, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// NewCompressWriter wraps w in a compressor. Close flushes the compressed
// stream but does not close w.
func NewCompressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionXz:
		return xz.NewWriter(w)
	case CompressionNone, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
