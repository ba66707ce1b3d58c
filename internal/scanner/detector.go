package scanner

import (
	"bytes"
	"io"
	"os"
)

// HeaderSize is the number of leading bytes needed to detect a format
const HeaderSize = 512

// Magic bytes for container detection
var (
	// Debian packages start with "!<arch>\ndebian"
	debMagic = []byte("!<arch>\ndebian")

	// RPM packages start with 0xED 0xAB 0xEE 0xDB
	rpmMagic = []byte{0xED, 0xAB, 0xEE, 0xDB}

	gzipMagic = []byte{0x1F, 0x8B}

	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

	xzMagic = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}

	// POSIX and GNU tar both carry "ustar" at offset 257
	tarMagic  = []byte("ustar")
	tarOffset = 257
)

// DetectHeader determines the container format from the leading bytes of
// an artifact
func DetectHeader(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, debMagic):
		return FormatDeb
	case bytes.HasPrefix(header, rpmMagic):
		return FormatRpm
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(header, zstdMagic):
		return FormatZstd
	case bytes.HasPrefix(header, xzMagic):
		return FormatXz
	case len(header) >= tarOffset+len(tarMagic) && bytes.Equal(header[tarOffset:tarOffset+len(tarMagic)], tarMagic):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// DetectReader reads up to HeaderSize bytes from r and detects the format.
// The caller is responsible for rewinding r.
func DetectReader(r io.Reader) (Format, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	return DetectHeader(header[:n]), nil
}

// DetectFormat determines the container format of a file
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	return DetectReader(f)
}
