package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgfeed/internal/utils"
)

// FileSystemBackend stores objects as files below a root directory
type FileSystemBackend struct {
	root string
}

// NewFileSystemBackend creates a backend rooted at root
func NewFileSystemBackend(root string) (*FileSystemBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("storage path is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileSystemBackend{root: abs}, nil
}

func (b *FileSystemBackend) path(key string) (string, error) {
	p := filepath.Join(b.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

// Put stores r under key. The file appears atomically.
func (b *FileSystemBackend) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(key)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(p, r, 0644)
}

// Get opens the file stored under key
func (b *FileSystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the file stored under key and prunes empty parents
func (b *FileSystemBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}

	for dir := filepath.Dir(p); dir != b.root && strings.HasPrefix(dir, b.root); dir = filepath.Dir(dir) {
		if err := utils.RemoveDirIfEmpty(dir); err != nil {
			return err
		}
	}
	return nil
}
