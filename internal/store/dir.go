package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Dir is a store rooted at a local directory. The revision of a file is the
// hex SHA-256 of its content. Commit messages are not recorded.
type Dir struct {
	root string
	mu   sync.Mutex
}

// NewDir returns a store rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("store directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory the store writes into.
func (d *Dir) Root() string {
	return d.root
}

// Get implements Store.
func (d *Dir) Get(_ context.Context, path string) (*File, error) {
	full, clean, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, d.unavailable("get", clean, err)
	}
	return &File{Path: clean, Revision: revisionOf(data), Content: data}, nil
}

// Put implements Store.
func (d *Dir) Put(_ context.Context, req PutRequest) (*PutResult, error) {
	full, clean, err := d.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	if clean == "" {
		return nil, d.unavailable("put", clean, errors.New("cannot write the store root"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := os.ReadFile(full)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, d.unavailable("put", clean, err)
	}
	if exists && req.Revision != revisionOf(current) || !exists && req.Revision != "" {
		return nil, &StatusError{Op: "put", Path: clean, Message: "file changed since it was read", Kind: ErrConflict}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, d.unavailable("put", clean, err)
	}
	if err := atomicWrite(full, req.Content); err != nil {
		return nil, d.unavailable("put", clean, err)
	}
	return &PutResult{Path: clean, Revision: revisionOf(req.Content), Created: !exists}, nil
}

// List implements Store. Hidden entries are skipped.
func (d *Dir) List(_ context.Context, dir string) ([]Entry, error) {
	full, clean, err := d.resolve(dir)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, d.unavailable("list", clean, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Name(), ".") {
			continue
		}
		typ := EntryFile
		if item.IsDir() {
			typ = EntryDir
		}
		entries = append(entries, Entry{Name: item.Name(), Type: typ})
	}
	return entries, nil
}

func (d *Dir) resolve(path string) (string, string, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), clean, nil
}

func (d *Dir) unavailable(op, path string, err error) error {
	return &StatusError{Op: op, Path: path, Message: err.Error(), Kind: ErrUnavailable}
}

func revisionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// atomicWrite writes data to path using write-to-temp-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
