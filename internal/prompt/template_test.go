package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	l := NewLoader("", "")
	wantKinds := map[string]string{
		Idea: "text", App: "html", Classify: "text", Schema: "sql", Marketing: "text", Hub: "html",
	}

	for name, kind := range wantKinds {
		t.Run(name, func(t *testing.T) {
			tmpl, err := l.Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, tmpl.Name)
			assert.Equal(t, kind, tmpl.Kind)
			assert.Equal(t, "built-in", tmpl.Source)
			assert.NotEmpty(t, tmpl.Role)
			assert.NotEmpty(t, tmpl.Goal)
			assert.NotEmpty(t, tmpl.Content)
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := NewLoader("", "").Load("nope")
	assert.ErrorContains(t, err, `template "nope" not found`)
}

func writeTemplate(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".md")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ResolutionOrder(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	global := filepath.Join(root, "global")

	writeTemplate(t, global, "app", "---\nname: app\nrole: Global Dev\nkind: html\n---\nglobal body")
	l := NewLoader(project, global)

	tmpl, err := l.Load("app")
	require.NoError(t, err)
	assert.Equal(t, "global", tmpl.Source)
	assert.Equal(t, "Global Dev", tmpl.Role)

	writeTemplate(t, project, "app", "---\nrole: Project Dev\n---\nproject body")
	tmpl, err = l.Load("app")
	require.NoError(t, err)
	assert.Equal(t, "project", tmpl.Source)
	assert.Equal(t, "app", tmpl.Name, "name defaults to the file name")
	assert.Equal(t, "project body", tmpl.Content)
}

func TestLoad_InvalidProjectTemplateIsAnError(t *testing.T) {
	project := t.TempDir()
	writeTemplate(t, project, "idea", "---\nrole: [unclosed\n---\nbody")

	_, err := NewLoader(project, "").Load("idea")
	assert.ErrorContains(t, err, "invalid frontmatter")
}

func TestLoad_CacheTracksModTime(t *testing.T) {
	project := t.TempDir()
	path := writeTemplate(t, project, "idea", "---\nkind: text\n---\nfirst")
	l := NewLoader(project, "")

	tmpl, err := l.Load("idea")
	require.NoError(t, err)
	assert.Equal(t, "first", tmpl.Content)

	require.NoError(t, os.WriteFile(path, []byte("---\nkind: text\n---\nsecond"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	tmpl, err = l.Load("idea")
	require.NoError(t, err)
	assert.Equal(t, "second", tmpl.Content)
}

func TestLoad_ReturnsCopies(t *testing.T) {
	l := NewLoader("", "")
	a, err := l.Load(App)
	require.NoError(t, err)
	a.Content = "mutated"

	b, err := l.Load(App)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", b.Content)
}

func TestList(t *testing.T) {
	project := t.TempDir()
	writeTemplate(t, project, "hub", "---\ndescription: my hub\nkind: html\n---\nbody")
	writeTemplate(t, project, "custom", "---\ndescription: extra\n---\nbody")

	infos := NewLoader(project, "").List()

	byName := map[string]TemplateInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Len(t, byName, 7)
	assert.Equal(t, "project", byName["hub"].Source)
	assert.Equal(t, "built-in", byName["hub"].Overrides)
	assert.Equal(t, "project", byName["custom"].Source)
	assert.Equal(t, "built-in", byName["app"].Source)
	assert.Equal(t, "app", infos[0].Name, "sorted by name")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantContent string
		wantRole    string
		wantErr     bool
	}{
		{name: "frontmatter", raw: "---\nrole: Analyst\n---\n\nDo it.\n", wantContent: "Do it.", wantRole: "Analyst"},
		{name: "no frontmatter", raw: "Just text", wantContent: "Just text"},
		{name: "unclosed frontmatter is content", raw: "---\nrole: x\nbody", wantContent: "---\nrole: x\nbody"},
		{name: "empty body", raw: "---\nrole: x\n---\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, tmpl.Content)
			assert.Equal(t, tt.wantRole, tmpl.Role)
		})
	}
}

func TestRender(t *testing.T) {
	tmpl := &Template{Content: "Build {{idea}} at {{folder}}/index.html. Keep {{unknown}}."}

	got := Render(tmpl, map[string]string{"idea": "a tip calculator", "folder": "2024-01-01-tip"})

	assert.Equal(t, "Build a tip calculator at 2024-01-01-tip/index.html. Keep {{unknown}}.", got)
}
