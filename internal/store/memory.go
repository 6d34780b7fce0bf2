package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Op records one call made against a Memory store.
type Op struct {
	Kind string // "get", "put" or "list"
	Path string
}

// Memory is an in-process store. Revisions are increasing integers.
// It is used for dry runs and tests.
type Memory struct {
	mu    sync.Mutex
	files map[string]memFile
	next  int
	ops   []Op

	// BeforePut, when set, runs before each Put is applied, outside the lock.
	BeforePut func(path string)
	// FailWith, when set, is returned by every call.
	FailWith error
}

type memFile struct {
	content  []byte
	revision string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]memFile)}
}

// Write stores content at path without a revision check and returns the new
// revision. It is not recorded in Ops.
func (m *Memory) Write(path, content string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(path, []byte(content))
}

// Content returns the stored content at path.
func (m *Memory) Content(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	return string(f.content), ok
}

// Ops returns the calls made so far.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// Count returns how many calls of kind were made.
func (m *Memory) Count(kind string) int {
	n := 0
	for _, op := range m.Ops() {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, path string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, Op{Kind: "get", Path: path})
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	f, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &File{Path: path, Revision: f.revision, Content: append([]byte(nil), f.content...)}, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, req PutRequest) (*PutResult, error) {
	if m.BeforePut != nil {
		m.BeforePut(req.Path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, Op{Kind: "put", Path: req.Path})
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	current, exists := m.files[req.Path]
	if exists && req.Revision != current.revision || !exists && req.Revision != "" {
		return nil, &StatusError{
			Op: "put", Path: req.Path, Status: 409,
			Message: "revision " + strconv.Quote(req.Revision) + " is stale", Kind: ErrConflict,
		}
	}
	rev := m.writeLocked(req.Path, req.Content)
	return &PutResult{Path: req.Path, Revision: rev, Created: !exists}, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, dir string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, Op{Kind: "list", Path: dir})
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	seen := make(map[string]EntryType)
	for p := range m.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = EntryDir
		} else if _, dup := seen[name]; !dup {
			seen[name] = EntryFile
		}
	}
	if len(seen) == 0 && dir != "" {
		return nil, ErrNotFound
	}
	entries := make([]Entry, 0, len(seen))
	for name, typ := range seen {
		entries = append(entries, Entry{Name: name, Type: typ})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *Memory) writeLocked(path string, content []byte) string {
	m.next++
	rev := "r" + strconv.Itoa(m.next)
	m.files[path] = memFile{content: append([]byte(nil), content...), revision: rev}
	return rev
}
