// Package mcp provides a Model Context Protocol server for microfactory.
// It exposes extraction, the tool catalog, stored files and publishing as MCP
// tools so an agent can inspect or repair a site between scheduled runs.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/microfactory/internal/catalog"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
	"github.com/gorewood/microfactory/internal/store"
)

// Deps are the services the tools operate on.
type Deps struct {
	Store     store.Store
	Publisher *publish.Publisher
	Catalog   *catalog.Builder
	Templates *prompt.Loader
}

// NewServer creates an MCP server with all microfactory tools registered.
func NewServer(version string, deps Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "microfactory",
		Version: version,
	}, nil)
	registerTools(server, deps)
	return server
}

func boolPtr(b bool) *bool {
	return &b
}

// localAnnotations are for read-only tools that never leave the process.
func localAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// remoteReadAnnotations are for read-only tools backed by the store.
func remoteReadAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(true),
	}
}

// publishAnnotations describe a write that replaces whole files.
func publishAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		DestructiveHint: boolPtr(true),
		IdempotentHint:  true,
		OpenWorldHint:   boolPtr(true),
	}
}

func registerTools(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract",
		Description: "Extract the artifact body from raw model output. Picks the first fenced block tagged for the kind (html, sql, text), else the first fenced block, else the raw text.",
		Annotations: localAnnotations(),
	}, handleExtract())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "templates",
		Description: "List prompt templates with their source (project, global, built-in), or show one template with name set.",
		Annotations: localAnnotations(),
	}, handleTemplates(deps.Templates))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog",
		Description: "List published tool folders (top-level folders whose name starts with a digit).",
		Annotations: remoteReadAnnotations(),
	}, handleCatalog(deps.Catalog))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_file",
		Description: "Read one file from the site repository with its revision token.",
		Annotations: remoteReadAnnotations(),
	}, handleReadFile(deps.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "publish",
		Description: "Create or overwrite one file in the site repository. Empty content is refused; a concurrent change is reported as a conflict.",
		Annotations: publishAnnotations(),
	}, handlePublish(deps.Publisher))
}
