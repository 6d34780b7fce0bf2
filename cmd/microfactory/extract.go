package main

import (
	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/output"
)

func newExtractCmd() *cobra.Command {
	var kindFlag string
	var sanitize bool

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract an artifact from raw model output",
		Long: `Extract the artifact body from raw model output read from [file] or stdin.

The first fenced block tagged for the kind wins, then the first fenced block
of any kind, then the whole text.

Examples:
  microfactory generate "Write a tip calculator page" | microfactory extract --kind html
  microfactory extract answer.md --kind sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)

			kind, err := extract.ParseKind(kindFlag)
			if err != nil {
				return fail(printer, output.NewUserError(err.Error()))
			}
			file := ""
			if len(args) > 0 {
				file = args[0]
			}
			raw, err := readInput(cmd, file)
			if err != nil {
				return fail(printer, err)
			}

			body, fellBack := extract.ExtractReport(raw, kind)
			if sanitize {
				body = extract.Sanitize(body)
			}
			if printer.IsJSON() {
				return printer.Success(map[string]any{
					"kind":      string(kind),
					"body":      body,
					"fell_back": fellBack,
				})
			}
			printer.Print("%s\n", body)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "text", "Artifact kind: html, sql, text")
	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "Also strip conversational lead-ins and sign-offs")
	return cmd
}
