// Package session persists the authenticated browser session that the post
// scraper reuses between runs. There is exactly one session slot; writers
// overwrite it without locking, so concurrent scrapes resolve as last writer
// wins.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Cache is a single-slot store for an opaque session blob.
type Cache interface {
	// Load returns the saved blob and true, or false when nothing is saved.
	Load() ([]byte, bool, error)
	// Store replaces the saved blob.
	Store(blob []byte) error
}

// File keeps the session blob in one file on disk.
type File struct {
	path string
}

var _ Cache = (*File)(nil)

// NewFile returns a file-backed cache at path. The file is created on the
// first Store.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the location of the session file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read session: %w", err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

func (f *File) Store(blob []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session: %w", err)
	}
	return nil
}
