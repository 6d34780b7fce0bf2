// Package catalog lists the tools already published to a store.
//
// A tool is a top-level directory whose name starts with a digit, which is
// how dated folders such as 2024-01-01-tip-calculator are told apart from
// assets and other files at the root.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/logging"
	"github.com/gorewood/microfactory/internal/store"
)

// Builder lists published tools. It caches nothing.
type Builder struct {
	store  store.Store
	logger *zap.Logger
}

// New returns a Builder over s.
func New(s store.Store, logger *zap.Logger) *Builder {
	return &Builder{store: s, logger: logging.OrNop(logger)}
}

// ListPublishedTools returns tool folder names in store order.
// A listing failure yields an empty list and a warning.
func (b *Builder) ListPublishedTools(ctx context.Context) []string {
	entries, err := b.store.List(ctx, "")
	if err != nil {
		b.logger.Warn("catalog unavailable", zap.Error(err))
		return []string{}
	}
	return Filter(entries)
}

// Filter keeps directories whose name starts with an ASCII digit.
func Filter(entries []store.Entry) []string {
	tools := []string{}
	for _, e := range entries {
		if e.Type == store.EntryDir && e.Name != "" && e.Name[0] >= '0' && e.Name[0] <= '9' {
			tools = append(tools, e.Name)
		}
	}
	return tools
}

// Describe renders names as the bullet list handed to the hub designer.
func Describe(names []string) string {
	if len(names) == 0 {
		return "(no tools published yet)"
	}
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s -> %s/index.html\n", name, name)
	}
	return strings.TrimRight(b.String(), "\n")
}
