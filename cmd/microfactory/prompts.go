package main

import (
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/agent"
	"github.com/gorewood/microfactory/internal/output"
	"github.com/gorewood/microfactory/internal/prompt"
)

func newPromptsCmd() *cobra.Command {
	var render bool
	var vars map[string]string

	cmd := &cobra.Command{
		Use:   "prompts [template]",
		Short: "List or show the agent prompt templates",
		Long: `List the templates each pipeline step uses, or show one.

Templates are resolved in order:
  1. .microfactory/templates/<name>.md (project-local)
  2. ~/.config/microfactory/templates/<name>.md (user global)
  3. Built-in templates

Examples:
  microfactory prompts                       # list templates
  microfactory prompts app                   # show the app template
  microfactory prompts hub --render --var catalog="- a -> a/index.html"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			loader := prompt.DefaultLoader()

			if len(args) == 0 {
				return listPrompts(printer, loader)
			}

			tmpl, err := loader.Load(args[0])
			if err != nil {
				return fail(printer, output.NewUserError(err.Error()+". Run 'microfactory prompts' to see available templates"))
			}
			if render {
				a, err := agent.FromTemplate(tmpl)
				if err != nil {
					return fail(printer, output.NewUserError(err.Error()))
				}
				text := a.Instructions(vars)
				if printer.IsJSON() {
					return printer.Success(map[string]any{"name": tmpl.Name, "instructions": text})
				}
				printer.Print("%s\n", text)
				return nil
			}
			styled := output.ResolveColorMode(stringFlag(cmd, "color"), output.IsTTY(cmd.OutOrStdout()))
			return showPrompt(printer, tmpl, styled)
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "Render the full agent instructions")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Template variable for --render (key=value, repeatable)")
	return cmd
}

func listPrompts(printer *output.Printer, loader *prompt.Loader) error {
	infos := loader.List()
	if printer.IsJSON() {
		items := make([]map[string]string, 0, len(infos))
		for _, info := range infos {
			items = append(items, map[string]string{
				"name":        info.Name,
				"description": info.Description,
				"kind":        info.Kind,
				"source":      info.Source,
				"overrides":   info.Overrides,
			})
		}
		return printer.WriteJSON(map[string]any{"templates": items})
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		source := info.Source
		if info.Overrides != "" {
			source += " (overrides " + info.Overrides + ")"
		}
		rows = append(rows, []string{info.Name, orDash(info.Kind), source, info.Description})
	}
	printer.Table([]string{"NAME", "KIND", "SOURCE", "DESCRIPTION"}, rows)
	return nil
}

func showPrompt(printer *output.Printer, tmpl *prompt.Template, styled bool) error {
	if printer.IsJSON() {
		return printer.Success(map[string]any{
			"name":            tmpl.Name,
			"description":     tmpl.Description,
			"version":         tmpl.Version,
			"role":            tmpl.Role,
			"goal":            tmpl.Goal,
			"backstory":       tmpl.Backstory,
			"expected_output": tmpl.ExpectedOutput,
			"kind":            tmpl.Kind,
			"source":          tmpl.Source,
			"content":         tmpl.Content,
		})
	}
	printer.Section(tmpl.Name)
	printer.KeyValue("Source", tmpl.Source)
	printer.KeyValue("Kind", orDash(tmpl.Kind))
	printer.KeyValue("Role", orDash(tmpl.Role))
	printer.KeyValue("Goal", orDash(tmpl.Goal))
	printer.Println()
	printer.Print("%s\n", renderMarkdown(tmpl.Content, styled))
	return nil
}

// renderMarkdown styles template text for a terminal, or returns it as-is.
func renderMarkdown(content string, styled bool) string {
	if !styled {
		return content
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}
