package scanner

import "context"

// Format represents the container format of an uploaded artifact
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatGzip
	FormatZstd
	FormatXz
	FormatRpm
	FormatDeb
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "tar.gz"
	case FormatZstd:
		return "tar.zst"
	case FormatXz:
		return "tar.xz"
	case FormatRpm:
		return "rpm"
	case FormatDeb:
		return "deb"
	default:
		return "unknown"
	}
}

// ScannedPackage represents an artifact file found during scanning
type ScannedPackage struct {
	Path   string
	Format Format
	Size   int64
}

// Scanner interface for finding artifacts to push
type Scanner interface {
	// Scan recursively scans a directory for artifacts
	Scan(ctx context.Context, dir string) ([]ScannedPackage, error)

	// DetectFormat determines the container format of a file
	DetectFormat(path string) (Format, error)
}
