package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan recursively scans a directory for artifacts
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]ScannedPackage, error) {
	var packages []ScannedPackage

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			return nil
		}

		format, err := s.DetectFormat(path)
		if err != nil {
			logrus.Warnf("Failed to detect format for %s: %v", path, err)
			return nil
		}

		if format == FormatUnknown {
			return nil
		}

		logrus.Debugf("Found %s artifact: %s", format, path)

		packages = append(packages, ScannedPackage{
			Path:   path,
			Format: format,
			Size:   info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logrus.Infof("Found %d artifacts in %s", len(packages), dir)
	return packages, nil
}

// DetectFormat determines the container format of a file
func (s *FileSystemScanner) DetectFormat(path string) (Format, error) {
	return DetectFormat(path)
}
