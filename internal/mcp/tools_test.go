package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/microfactory/internal/catalog"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
	"github.com/gorewood/microfactory/internal/store"
)

func newTestDeps(t *testing.T) (Deps, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return Deps{
		Store:     mem,
		Publisher: publish.New(mem, publish.Options{}),
		Catalog:   catalog.New(mem, nil),
		Templates: prompt.NewLoader(t.TempDir(), ""),
	}, mem
}

// --- Extract handler tests ---

func TestHandleExtract(t *testing.T) {
	tests := []struct {
		name         string
		input        ExtractInput
		wantBody     string
		wantKind     string
		wantFellBack bool
	}{
		{
			name:     "html block",
			input:    ExtractInput{Raw: "Here:\n```html\n<p>hi</p>\n```", Kind: "html"},
			wantBody: "<p>hi</p>",
			wantKind: "html",
		},
		{
			name:         "no fence",
			input:        ExtractInput{Raw: "  plain text  "},
			wantBody:     "plain text",
			wantKind:     "text",
			wantFellBack: true,
		},
		{
			name:     "sql picks tagged block",
			input:    ExtractInput{Raw: "```bash\nls\n```\n```sql\nSELECT 1;\n```", Kind: "sql"},
			wantBody: "SELECT 1;",
			wantKind: "sql",
		},
	}

	handler := handleExtract()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := handler(context.Background(), &mcp.CallToolRequest{}, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", out.Body, tt.wantBody)
			}
			if out.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", out.Kind, tt.wantKind)
			}
			if out.FellBack != tt.wantFellBack {
				t.Errorf("FellBack = %v, want %v", out.FellBack, tt.wantFellBack)
			}
		})
	}
}

func TestHandleExtract_UnknownKind(t *testing.T) {
	_, _, err := handleExtract()(context.Background(), &mcp.CallToolRequest{}, ExtractInput{Raw: "x", Kind: "yaml"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// --- Catalog handler tests ---

func TestHandleCatalog(t *testing.T) {
	deps, mem := newTestDeps(t)
	mem.Write("2024-01-01-tip-calculator/index.html", "<p>tip</p>")
	mem.Write("2024-01-02-unit-converter/index.html", "<p>units</p>")
	mem.Write("assets/style.css", "body{}")
	mem.Write("index.html", "<p>hub</p>")

	_, out, err := handleCatalog(deps.Catalog)(context.Background(), &mcp.CallToolRequest{}, CatalogInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("Count = %d, want 2", out.Count)
	}
	if out.Tools[0] != "2024-01-01-tip-calculator" || out.Tools[1] != "2024-01-02-unit-converter" {
		t.Errorf("Tools = %v", out.Tools)
	}
}

func TestHandleCatalog_StoreDown(t *testing.T) {
	deps, mem := newTestDeps(t)
	mem.FailWith = store.ErrUnavailable

	_, out, err := handleCatalog(deps.Catalog)(context.Background(), &mcp.CallToolRequest{}, CatalogInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Count != 0 || out.Tools == nil {
		t.Errorf("got %+v, want an empty non-nil list", out)
	}
}

// --- Read file handler tests ---

func TestHandleReadFile(t *testing.T) {
	deps, mem := newTestDeps(t)
	rev := mem.Write("index.html", "<p>hub</p>")
	handler := handleReadFile(deps.Store)

	_, out, err := handler(context.Background(), &mcp.CallToolRequest{}, ReadFileInput{Path: "/index.html"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Exists || out.Content != "<p>hub</p>" || out.Revision != rev {
		t.Errorf("got %+v", out)
	}

	_, out, err = handler(context.Background(), &mcp.CallToolRequest{}, ReadFileInput{Path: "missing.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Exists {
		t.Error("Exists = true for a missing file")
	}
}

func TestHandleReadFile_RejectsBadPaths(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := handleReadFile(deps.Store)

	for _, path := range []string{"", "../secrets", "a/../../b"} {
		if _, _, err := handler(context.Background(), &mcp.CallToolRequest{}, ReadFileInput{Path: path}); err == nil {
			t.Errorf("path %q: expected error", path)
		}
	}
}

// --- Publish handler tests ---

func TestHandlePublish_CreateThenUpdate(t *testing.T) {
	deps, mem := newTestDeps(t)
	handler := handlePublish(deps.Publisher)

	_, out, err := handler(context.Background(), &mcp.CallToolRequest{}, PublishInput{Path: "notes.txt", Content: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "created" || out.Attempts != 1 {
		t.Errorf("first publish = %+v", out)
	}

	_, out, err = handler(context.Background(), &mcp.CallToolRequest{}, PublishInput{Path: "notes.txt", Content: "v2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "updated" {
		t.Errorf("Status = %q, want updated", out.Status)
	}
	if got, _ := mem.Content("notes.txt"); got != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestHandlePublish_EmptyContent(t *testing.T) {
	deps, mem := newTestDeps(t)

	_, out, err := handlePublish(deps.Publisher)(context.Background(), &mcp.CallToolRequest{}, PublishInput{Path: "x.sql", Content: " \n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "failed" || out.Reason != "empty" {
		t.Errorf("got %+v, want failed/empty", out)
	}
	if n := len(mem.Ops()); n != 0 {
		t.Errorf("store calls = %d, want 0", n)
	}
}

func TestHandlePublish_Conflict(t *testing.T) {
	deps, mem := newTestDeps(t)
	mem.Write("index.html", "old")
	mem.BeforePut = func(path string) { mem.Write(path, "theirs") }

	_, out, err := handlePublish(deps.Publisher)(context.Background(), &mcp.CallToolRequest{}, PublishInput{Path: "index.html", Content: "mine"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reason != "conflict" {
		t.Errorf("Reason = %q, want conflict", out.Reason)
	}
	if !errors.Is(deps.Publisher.Publish(context.Background(), publishArtifactFor("index.html", "mine")).Err, store.ErrConflict) {
		t.Error("expected the publisher to keep reporting the conflict")
	}
}

func publishArtifactFor(path, content string) publish.Artifact {
	return publish.Artifact{Kind: kindForPath(path), Path: path, Message: "Update " + path, Content: content}
}

func TestKindForPath(t *testing.T) {
	tests := map[string]string{
		"a/index.html":         "html",
		"a/setup_database.sql": "sql",
		"a/marketing_kit.txt":  "text",
		"README":               "text",
	}
	for path, want := range tests {
		if got := string(kindForPath(path)); got != want {
			t.Errorf("kindForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

// --- Templates handler tests ---

func TestHandleTemplates(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := handleTemplates(deps.Templates)

	_, out, err := handler(context.Background(), &mcp.CallToolRequest{}, TemplatesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Templates) == 0 {
		t.Fatal("no templates listed")
	}

	_, out, err = handler(context.Background(), &mcp.CallToolRequest{}, TemplatesInput{Name: "hub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Content == "" || out.Templates[0].Source != "built-in" {
		t.Errorf("got %+v", out)
	}
}

// --- Server wiring ---

func connectInMemory(t *testing.T, ctx context.Context, deps Deps) *mcp.ClientSession {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer("test", deps).Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestNewServer_ListsTools(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, deps)

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"extract", "templates", "catalog", "read_file", "publish"} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestNewServer_CallExtract(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, deps)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "extract",
		Arguments: map[string]any{"raw": "```sql\nSELECT 1;\n```", "kind": "sql"},
	})
	if err != nil {
		t.Fatalf("call extract: %v", err)
	}
	if res.IsError {
		t.Fatalf("extract returned an error result: %+v", res.Content)
	}

	var out ExtractOutput
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
				t.Fatalf("unmarshal: %v (text: %s)", err, tc.Text)
			}
		}
	}
	if out.Body != "SELECT 1;" {
		t.Errorf("Body = %q, want %q", out.Body, "SELECT 1;")
	}
}
