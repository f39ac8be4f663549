package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend keeps each document in its own JSON file.
// Writes go to a temp file in the same directory and are renamed into place,
// so readers see either the previous document or the new one.
type FileBackend struct {
	paths map[string]string
}

// NewFileBackend creates a file backend. paths maps document name to file path.
func NewFileBackend(paths map[string]string) (*FileBackend, error) {
	for name, path := range paths {
		if path == "" {
			return nil, fmt.Errorf("empty path for document %q", name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", name, err)
		}
	}
	return &FileBackend{paths: paths}, nil
}

func (b *FileBackend) path(name string) (string, error) {
	p, ok := b.paths[name]
	if !ok {
		return "", fmt.Errorf("no file configured for document %q", name)
	}
	return p, nil
}

// Read implements Backend.
func (b *FileBackend) Read(_ context.Context, name string) ([]byte, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Write implements Backend.
func (b *FileBackend) Write(_ context.Context, name string, body []byte) error {
	path, err := b.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Ping checks that every document directory is still present.
func (b *FileBackend) Ping(_ context.Context) error {
	for name, path := range b.paths {
		if _, err := os.Stat(filepath.Dir(path)); err != nil {
			return fmt.Errorf("directory for %s: %w", name, err)
		}
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }
