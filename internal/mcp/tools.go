package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/microfactory/internal/catalog"
	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
	"github.com/gorewood/microfactory/internal/store"
)

// --- Extract tool ---

// ExtractInput is the input for the extract tool.
type ExtractInput struct {
	Raw  string `json:"raw"            jsonschema:"raw model output"`
	Kind string `json:"kind,omitempty" jsonschema:"artifact kind: html, sql or text (default text)"`
}

// ExtractOutput is the output for the extract tool.
type ExtractOutput struct {
	Kind     string `json:"kind"      jsonschema:"artifact kind used"`
	Body     string `json:"body"      jsonschema:"extracted artifact body"`
	FellBack bool   `json:"fell_back" jsonschema:"true when no fenced block was found and the raw text was used"`
}

func handleExtract() mcp.ToolHandlerFor[ExtractInput, ExtractOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ExtractInput) (*mcp.CallToolResult, ExtractOutput, error) {
		kind := extract.KindText
		if input.Kind != "" {
			k, err := extract.ParseKind(input.Kind)
			if err != nil {
				return nil, ExtractOutput{}, err
			}
			kind = k
		}
		body, fellBack := extract.ExtractReport(input.Raw, kind)
		return nil, ExtractOutput{Kind: string(kind), Body: body, FellBack: fellBack}, nil
	}
}

// --- Templates tool ---

// TemplatesInput is the input for the templates tool.
type TemplatesInput struct {
	Name string `json:"name,omitempty" jsonschema:"template to show; omit to list all"`
}

// TemplateSummary is one listed template.
type TemplateSummary struct {
	Name        string `json:"name"                  jsonschema:"template name"`
	Description string `json:"description,omitempty" jsonschema:"what the template produces"`
	Kind        string `json:"kind,omitempty"        jsonschema:"artifact kind"`
	Source      string `json:"source"                jsonschema:"project, global or built-in"`
	Overrides   string `json:"overrides,omitempty"   jsonschema:"source this template shadows"`
}

// TemplatesOutput is the output for the templates tool.
type TemplatesOutput struct {
	Templates []TemplateSummary `json:"templates,omitempty" jsonschema:"available templates"`
	Content   string            `json:"content,omitempty"   jsonschema:"task text of the named template"`
}

func handleTemplates(loader *prompt.Loader) mcp.ToolHandlerFor[TemplatesInput, TemplatesOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input TemplatesInput) (*mcp.CallToolResult, TemplatesOutput, error) {
		if loader == nil {
			return nil, TemplatesOutput{}, errors.New("templates are not configured")
		}
		if input.Name != "" {
			tmpl, err := loader.Load(input.Name)
			if err != nil {
				return nil, TemplatesOutput{}, err
			}
			return nil, TemplatesOutput{
				Templates: []TemplateSummary{{
					Name:        tmpl.Name,
					Description: tmpl.Description,
					Kind:        tmpl.Kind,
					Source:      tmpl.Source,
				}},
				Content: tmpl.Content,
			}, nil
		}

		infos := loader.List()
		out := TemplatesOutput{Templates: make([]TemplateSummary, 0, len(infos))}
		for _, info := range infos {
			out.Templates = append(out.Templates, TemplateSummary(info))
		}
		return nil, out, nil
	}
}

// --- Catalog tool ---

// CatalogInput is the input for the catalog tool (no parameters needed).
type CatalogInput struct{}

// CatalogOutput is the output for the catalog tool.
type CatalogOutput struct {
	Count int      `json:"count" jsonschema:"number of published tools"`
	Tools []string `json:"tools" jsonschema:"published tool folders in listing order"`
}

func handleCatalog(builder *catalog.Builder) mcp.ToolHandlerFor[CatalogInput, CatalogOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CatalogInput) (*mcp.CallToolResult, CatalogOutput, error) {
		tools := builder.ListPublishedTools(ctx)
		return nil, CatalogOutput{Count: len(tools), Tools: tools}, nil
	}
}

// --- Read file tool ---

// ReadFileInput is the input for the read_file tool.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"repository-relative file path"`
}

// ReadFileOutput is the output for the read_file tool.
type ReadFileOutput struct {
	Path     string `json:"path"     jsonschema:"file path"`
	Exists   bool   `json:"exists"   jsonschema:"false when the file does not exist"`
	Revision string `json:"revision,omitempty" jsonschema:"revision token of the current content"`
	Content  string `json:"content,omitempty"  jsonschema:"file content"`
}

func handleReadFile(s store.Store) mcp.ToolHandlerFor[ReadFileInput, ReadFileOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReadFileInput) (*mcp.CallToolResult, ReadFileOutput, error) {
		path, err := store.CleanPath(input.Path)
		if err != nil {
			return nil, ReadFileOutput{}, err
		}
		if path == "" {
			return nil, ReadFileOutput{}, errors.New("path is required")
		}

		f, err := s.Get(ctx, path)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ReadFileOutput{Path: path}, nil
		}
		if err != nil {
			return nil, ReadFileOutput{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return nil, ReadFileOutput{
			Path:     path,
			Exists:   true,
			Revision: f.Revision,
			Content:  string(f.Content),
		}, nil
	}
}

// --- Publish tool ---

// PublishInput is the input for the publish tool.
type PublishInput struct {
	Path    string `json:"path"              jsonschema:"repository-relative file path"`
	Content string `json:"content"           jsonschema:"full new file content"`
	Message string `json:"message,omitempty" jsonschema:"commit message (default: Update <path>)"`
}

// PublishOutput is the output for the publish tool.
type PublishOutput struct {
	Path     string `json:"path"               jsonschema:"file path"`
	Status   string `json:"status"             jsonschema:"created, updated or failed"`
	Revision string `json:"revision,omitempty" jsonschema:"revision token after the write"`
	Attempts int    `json:"attempts"           jsonschema:"store writes attempted"`
	Reason   string `json:"reason,omitempty"   jsonschema:"empty, conflict or unavailable when failed"`
	Error    string `json:"error,omitempty"    jsonschema:"failure detail"`
}

// handlePublish reports a failed publish in the output rather than as a tool
// error, so the caller can tell a conflict from an outage.
func handlePublish(pub *publish.Publisher) mcp.ToolHandlerFor[PublishInput, PublishOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PublishInput) (*mcp.CallToolResult, PublishOutput, error) {
		path, err := store.CleanPath(input.Path)
		if err != nil {
			return nil, PublishOutput{}, err
		}
		if path == "" {
			return nil, PublishOutput{}, errors.New("path is required")
		}
		message := input.Message
		if message == "" {
			message = "Update " + path
		}

		out := pub.Publish(ctx, publish.Artifact{
			Kind:    kindForPath(path),
			Path:    path,
			Message: message,
			Content: input.Content,
		})
		res := PublishOutput{
			Path:     out.Path,
			Status:   string(out.Status),
			Revision: out.Revision,
			Attempts: out.Attempts,
			Reason:   out.Reason(),
		}
		if out.Err != nil {
			res.Error = out.Err.Error()
		}
		return nil, res, nil
	}
}

func kindForPath(path string) extract.Kind {
	switch {
	case strings.HasSuffix(path, ".html"), strings.HasSuffix(path, ".htm"):
		return extract.KindHTML
	case strings.HasSuffix(path, ".sql"):
		return extract.KindSQL
	default:
		return extract.KindText
	}
}
