// Package store abstracts the remote file store the pipeline publishes into.
//
// A store holds files addressed by slash-separated paths. Every file has an
// opaque revision token; writes that replace an existing file must carry the
// current token, otherwise the store refuses with ErrConflict. This is the only
// concurrency control: the pipeline assumes a single writer per store.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound means the path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the revision on a write no longer matches the store.
	ErrConflict = errors.New("revision conflict")
	// ErrUnavailable covers every other failed read or write.
	ErrUnavailable = errors.New("store unavailable")
)

// File is a file read from the store.
type File struct {
	Path     string
	Revision string
	Content  []byte
}

// PutRequest creates or updates one file. An empty Revision means "create".
type PutRequest struct {
	Path     string
	Content  []byte
	Message  string
	Branch   string
	Revision string
}

// PutResult describes a successful write.
type PutResult struct {
	Path     string
	Revision string
	Created  bool
}

// EntryType distinguishes directories from files in a listing.
type EntryType string

// Entry types.
const (
	EntryDir  EntryType = "dir"
	EntryFile EntryType = "file"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Type EntryType
}

// Store is implemented by every backend.
type Store interface {
	// Get returns the file at path, or ErrNotFound.
	Get(ctx context.Context, path string) (*File, error)
	// Put creates or updates a file, returning ErrConflict on a stale revision.
	Put(ctx context.Context, req PutRequest) (*PutResult, error)
	// List returns the immediate children of dir ("" is the root), in the
	// order the backend provides them.
	List(ctx context.Context, dir string) ([]Entry, error)
}

// StatusError carries a backend status code and message for diagnostics.
// It unwraps to ErrConflict or ErrUnavailable.
type StatusError struct {
	Op      string
	Path    string
	Status  int
	Message string
	Kind    error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	target := e.Path
	if target == "" {
		target = "/"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, target, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %v (status %d): %s", e.Op, target, e.Kind, e.Status, e.Message)
}

// Unwrap returns the error kind for errors.Is.
func (e *StatusError) Unwrap() error {
	return e.Kind
}

// CleanPath normalises a store path: forward slashes, no leading slash,
// no "." or ".." segments. It returns an error for paths that escape the root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path %q escapes the store root", p)
		}
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
