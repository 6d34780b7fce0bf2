// Package prompt loads the prompt templates that define each agent.
//
// A template is a markdown file with YAML frontmatter describing the agent's
// persona and expected output, followed by the task text. Templates resolve
// project-local first (.microfactory/templates), then the user's config
// directory, then the built-in set.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/gorewood/microfactory/internal/config"
)

// Template represents a prompt template with metadata and content.
type Template struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Version        int    `yaml:"version,omitempty"`
	Role           string `yaml:"role"`
	Goal           string `yaml:"goal"`
	Backstory      string `yaml:"backstory"`
	ExpectedOutput string `yaml:"expected_output"`
	// Kind is the artifact kind the output is extracted as: html, sql or text.
	Kind string `yaml:"kind"`

	// Content is the task text after the frontmatter.
	Content string `yaml:"-"`
	// Source is "project", "global" or "built-in".
	Source string `yaml:"-"`
}

// TemplateInfo provides template metadata for listing.
type TemplateInfo struct {
	Name        string
	Description string
	Kind        string
	Source      string
	Overrides   string // "built-in" when this template shadows one
}

// ProjectDir is the project-local template directory.
const ProjectDir = ".microfactory/templates"

const cacheSize = 32

// Loader resolves templates by name and caches parsed files.
type Loader struct {
	projectDir string
	globalDir  string
	cache      *lru.Cache[string, *Template]
}

// NewLoader returns a loader over the given directories. Either may be empty.
func NewLoader(projectDir, globalDir string) *Loader {
	cache, err := lru.New[string, *Template](cacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Loader{projectDir: projectDir, globalDir: globalDir, cache: cache}
}

// DefaultLoader uses ProjectDir and <config dir>/templates.
func DefaultLoader() *Loader {
	global := ""
	if dir := config.Dir(); dir != "" {
		global = filepath.Join(dir, "templates")
	}
	return NewLoader(ProjectDir, global)
}

// Load finds and loads a template by name.
func (l *Loader) Load(name string) (*Template, error) {
	sources := []struct{ source, dir string }{
		{"project", l.projectDir},
		{"global", l.globalDir},
	}
	for _, src := range sources {
		if src.dir == "" {
			continue
		}
		tmpl, err := l.loadFile(filepath.Join(src.dir, name+".md"))
		if err == nil {
			return withSource(tmpl, name, src.source), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	tmpl, err := l.loadBuiltin(name)
	if err != nil {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return withSource(tmpl, name, "built-in"), nil
}

// List returns every available template, built-ins marked when shadowed.
func (l *Loader) List() []TemplateInfo {
	seen := make(map[string]string)
	var infos []TemplateInfo

	for _, src := range []struct{ source, dir string }{{"project", l.projectDir}, {"global", l.globalDir}} {
		for _, name := range templateNames(src.dir) {
			if _, dup := seen[name]; dup {
				continue
			}
			tmpl, err := l.loadFile(filepath.Join(src.dir, name+".md"))
			if err != nil {
				continue
			}
			seen[name] = src.source
			infos = append(infos, infoOf(withSource(tmpl, name, src.source)))
		}
	}

	for _, name := range builtinNames() {
		tmpl, err := l.loadBuiltin(name)
		if err != nil {
			continue
		}
		if _, ok := seen[name]; ok {
			for i := range infos {
				if infos[i].Name == name {
					infos[i].Overrides = "built-in"
				}
			}
			continue
		}
		infos = append(infos, infoOf(withSource(tmpl, name, "built-in")))
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (l *Loader) loadFile(path string) (*Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if tmpl, ok := l.cache.Get(key); ok {
		return tmpl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tmpl, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	l.cache.Add(key, tmpl)
	return tmpl, nil
}

// withSource returns a copy so cached templates are never mutated.
func withSource(tmpl *Template, name, source string) *Template {
	out := *tmpl
	if out.Name == "" {
		out.Name = name
	}
	out.Source = source
	return &out
}

func infoOf(t *Template) TemplateInfo {
	return TemplateInfo{Name: t.Name, Description: t.Description, Kind: t.Kind, Source: t.Source}
}

func templateNames(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	return names
}

// Parse parses a template from raw content with YAML frontmatter.
func Parse(raw string) (*Template, error) {
	frontmatter, content := splitFrontmatter(raw)

	var tmpl Template
	if frontmatter != "" {
		if err := yaml.Unmarshal([]byte(frontmatter), &tmpl); err != nil {
			return nil, fmt.Errorf("invalid frontmatter: %w", err)
		}
	}
	tmpl.Content = strings.TrimSpace(content)
	if tmpl.Content == "" {
		return nil, errors.New("template has no content")
	}
	return &tmpl, nil
}

// splitFrontmatter separates YAML frontmatter delimited by --- lines.
func splitFrontmatter(raw string) (frontmatter, content string) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "---") {
		return "", raw
	}
	before, after, ok := strings.Cut(raw[3:], "\n---")
	if !ok {
		return "", raw
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// Render substitutes {{name}} placeholders. Unknown placeholders are left as is.
func Render(tmpl *Template, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, val := range vars {
		pairs = append(pairs, "{{"+key+"}}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl.Content)
}
