// Package spool gives forward-only streams a re-readable, disk-backed
// lifetime. Every file belongs to an Arena and is removed when the arena
// is closed.
package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// File is a spooled, seekable temporary file
type File struct {
	*os.File
	size int64
}

// Size returns the number of bytes spooled
func (f *File) Size() int64 {
	return f.size
}

// Rewind seeks back to the start of the file
func (f *File) Rewind() error {
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// Arena owns all spooled files of one ingestion attempt
type Arena struct {
	dir string

	mu     sync.Mutex
	files  []*File
	closed bool
}

// NewArena creates an arena spooling into dir (os.TempDir when empty)
func NewArena(dir string) *Arena {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Arena{dir: dir}
}

// Create returns an empty spool file owned by the arena
func (a *Arena) Create(name string) (*File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("spool arena is closed")
	}

	f, err := os.CreateTemp(a.dir, fmt.Sprintf("pkgfeed-%s-%s-*", name, uuid.NewString()[:8]))
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	sf := &File{File: f}
	a.files = append(a.files, sf)
	return sf, nil
}

// Spool copies r into a new spool file and rewinds it.
// Copying stops early when ctx is cancelled.
func (a *Arena) Spool(ctx context.Context, name string, r io.Reader, extra ...io.Writer) (*File, error) {
	f, err := a.Create(name)
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	if len(extra) > 0 {
		w = io.MultiWriter(append([]io.Writer{f}, extra...)...)
	}

	cr := &contextReader{ctx: ctx, r: r}
	n, err := io.Copy(w, cr)
	if err != nil {
		if cr.err != nil && ctx.Err() == nil {
			return nil, &ReadError{Name: name, Err: cr.err}
		}
		return nil, fmt.Errorf("failed to spool %s: %w", name, err)
	}
	f.size = n

	if err := f.Rewind(); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	return f, nil
}

// Len returns the number of files currently owned by the arena
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.files)
}

// Close closes and removes every spooled file. It is safe to call more
// than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true

	var errs []error
	for _, f := range a.files {
		name := f.Name()
		if err := f.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		logrus.Debugf("Released spool file %s", name)
	}
	a.files = nil

	return errors.Join(errs...)
}

// ReadError is returned by Spool when the source stream fails. Write
// failures and cancellation are returned as plain errors.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// contextReader fails reads once its context is done and remembers the
// last error of the underlying reader
type contextReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}
