package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.md
var builtinFS embed.FS

// Built-in template names used by the pipeline.
const (
	Idea      = "idea"
	App       = "app"
	Classify  = "classify"
	Schema    = "schema"
	Marketing = "marketing"
	Hub       = "hub"
)

func (l *Loader) loadBuiltin(name string) (*Template, error) {
	key := "builtin:" + name
	if tmpl, ok := l.cache.Get(key); ok {
		return tmpl, nil
	}
	data, err := builtinFS.ReadFile("templates/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("reading builtin template %s: %w", name, err)
	}
	tmpl, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("builtin template %s: %w", name, err)
	}
	l.cache.Add(key, tmpl)
	return tmpl, nil
}

func builtinNames() []string {
	entries, err := builtinFS.ReadDir("templates")
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
