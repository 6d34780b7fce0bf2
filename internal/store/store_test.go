package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorewood/microfactory/internal/config"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "index.html", want: "index.html"},
		{in: "/2024-01-01-tool/index.html", want: "2024-01-01-tool/index.html"},
		{in: "a//b/./c", want: "a/b/c"},
		{in: `a\b`, want: "a/b"},
		{in: "../etc/passwd", wantErr: true},
		{in: "a/../../b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusError(t *testing.T) {
	err := error(&StatusError{Op: "put", Path: "index.html", Status: 409, Message: "sha mismatch", Kind: ErrConflict})

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "put index.html: revision conflict (status 409): sha mismatch", err.Error())

	noStatus := &StatusError{Op: "list", Message: "dial tcp: refused", Kind: ErrUnavailable}
	assert.Equal(t, "list /: store unavailable: dial tcp: refused", noStatus.Error())
}

// backendContract runs the behaviour every backend shares.
func backendContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "2024-01-01-tool/index.html")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.Put(ctx, PutRequest{Path: "2024-01-01-tool/index.html", Content: []byte("v1"), Message: "add"})
	require.NoError(t, err)
	assert.True(t, created.Created)

	file, err := s.Get(ctx, "2024-01-01-tool/index.html")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(file.Content))
	assert.Equal(t, created.Revision, file.Revision)

	updated, err := s.Put(ctx, PutRequest{Path: "2024-01-01-tool/index.html", Content: []byte("v2"), Revision: file.Revision})
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.NotEqual(t, created.Revision, updated.Revision)

	_, err = s.Put(ctx, PutRequest{Path: "2024-01-01-tool/index.html", Content: []byte("v3"), Revision: created.Revision})
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.Put(ctx, PutRequest{Path: "2024-01-01-tool/index.html", Content: []byte("v3")})
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.Put(ctx, PutRequest{Path: "readme.md", Content: []byte("hi")})
	require.NoError(t, err)

	entries, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Entry{
		{Name: "2024-01-01-tool", Type: EntryDir},
		{Name: "readme.md", Type: EntryFile},
	}, entries)

	entries, err = s.List(ctx, "2024-01-01-tool")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "index.html", Type: EntryFile}}, entries)

	_, err = s.List(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Contract(t *testing.T) {
	backendContract(t, NewMemory())
}

func TestDir_Contract(t *testing.T) {
	d, err := NewDir(filepath.Join(t.TempDir(), "site"))
	require.NoError(t, err)
	backendContract(t, d)
}

func TestMemory_RecordsOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.Get(ctx, "a")
	_, _ = m.Put(ctx, PutRequest{Path: "a", Content: []byte("x")})
	_, _ = m.List(ctx, "")

	assert.Equal(t, []Op{{Kind: "get", Path: "a"}, {Kind: "put", Path: "a"}, {Kind: "list", Path: ""}}, m.Ops())
	assert.Equal(t, 1, m.Count("put"))
}

func TestMemory_BeforePutSimulatesConcurrentWriter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rev := m.Write("index.html", "old")

	m.BeforePut = func(path string) { m.Write(path, "someone else") }

	_, err := m.Put(ctx, PutRequest{Path: "index.html", Content: []byte("mine"), Revision: rev})
	require.ErrorIs(t, err, ErrConflict)

	got, _ := m.Content("index.html")
	assert.Equal(t, "someone else", got)
}

func TestMemory_FailWith(t *testing.T) {
	boom := &StatusError{Op: "list", Status: 503, Message: "down", Kind: ErrUnavailable}
	m := NewMemory()
	m.FailWith = boom

	_, err := m.List(context.Background(), "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestDir_WritesFilesAndSkipsHidden(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("x"), 0o644))

	_, err = d.Put(context.Background(), PutRequest{Path: "2024-01-01-tool/index.html", Content: []byte("<html>")})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "2024-01-01-tool", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))

	entries, err := d.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "2024-01-01-tool", Type: EntryDir}}, entries)
}

func TestDir_RejectsEscapingPaths(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, err = d.Put(context.Background(), PutRequest{Path: "../outside.html", Content: []byte("x")})
	assert.Error(t, err)
}

func TestEntryFromKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   Entry
		ok     bool
	}{
		{prefix: "", key: "2024-01-01-tool/", want: Entry{Name: "2024-01-01-tool", Type: EntryDir}, ok: true},
		{prefix: "", key: "index.html", want: Entry{Name: "index.html", Type: EntryFile}, ok: true},
		{prefix: "site/", key: "site/readme.md", want: Entry{Name: "readme.md", Type: EntryFile}, ok: true},
		{prefix: "site/", key: "site/", ok: false},
		{prefix: "site/", key: "other/readme.md", ok: false},
	}

	for _, tt := range tests {
		got, ok := entryFromKey(tt.prefix, tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.key)
		}
	}
}

func TestS3Helpers(t *testing.T) {
	assert.Equal(t, "", normalizePrefix("  "))
	assert.Equal(t, "tools/", normalizePrefix("/tools/"))
	assert.Equal(t, "tools/2024-01-01-a/index.html", objectKey("tools/", "2024-01-01-a/index.html"))
	assert.Equal(t, "application/octet-stream", contentType("data.bin-unknown"))
	assert.Contains(t, contentType("index.html"), "text/html")
}

func TestNewS3_RequiresSettings(t *testing.T) {
	_, err := NewS3(S3Options{})
	require.Error(t, err)

	_, err = NewS3(S3Options{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.ErrorContains(t, err, "bucket")

	s, err := NewS3(S3Options{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "tools", Prefix: "site"})
	require.NoError(t, err)
	assert.Equal(t, "site/", s.prefix)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(config.StoreConfig{Backend: config.BackendDir, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Dir{}, s)

	s, err = Open(config.StoreConfig{Backend: config.BackendGitHub, Repository: "acme/tools"})
	require.NoError(t, err)
	assert.IsType(t, &GitHub{}, s)

	_, err = Open(config.StoreConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unknown store backend")
}
