package main

import (
	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/output"
	"github.com/gorewood/microfactory/internal/publish"
	"github.com/gorewood/microfactory/internal/store"
)

type publishFlags struct {
	message string
	extract string
	backend string
}

func newPublishCmd() *cobra.Command {
	var flags publishFlags

	cmd := &cobra.Command{
		Use:   "publish <path> [file]",
		Short: "Create or overwrite one file in the site repository",
		Long: `Publish one file to the configured store.

Content is read from [file], or from stdin when no file is given. The current
revision is read first and sent with the write, so a concurrent change is
reported as a conflict instead of being overwritten. Empty content is refused.

Examples:
  microfactory publish 2024-01-01-tip-calculator/index.html tool.html
  cat answer.md | microfactory publish schema.sql --extract sql
  microfactory publish index.html hub.html --message "Rebuild hub"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.message, "message", "", "Commit message (default: Update <path>)")
	cmd.Flags().StringVar(&flags.extract, "extract", "", "Extract a fenced block of this kind (html, sql, text) before publishing")
	cmd.Flags().StringVar(&flags.backend, "store", "", "Store backend: github, dir, s3, memory")

	return cmd
}

func runPublish(cmd *cobra.Command, args []string, flags publishFlags) error {
	printer := newPrinter(cmd)
	logger := newLogger(cmd)
	defer func() { _ = logger.Sync() }()

	path, err := store.CleanPath(args[0])
	if err != nil || path == "" {
		return fail(printer, output.NewUserError("invalid path "+args[0]))
	}

	file := ""
	if len(args) > 1 {
		file = args[1]
	}
	content, err := readInput(cmd, file)
	if err != nil {
		return fail(printer, err)
	}

	kind := extract.KindText
	if flags.extract != "" {
		if kind, err = extract.ParseKind(flags.extract); err != nil {
			return fail(printer, output.NewUserError(err.Error()))
		}
		content = extract.Extract(content, kind)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fail(printer, err)
	}
	if flags.backend != "" {
		cfg.Store.Backend = flags.backend
	}
	s, err := openStore(cfg)
	if err != nil {
		return fail(printer, err)
	}

	message := flags.message
	if message == "" {
		message = "Update " + path
	}
	pub := publish.New(s, publish.Options{Branch: cfg.Store.Branch, Retries: cfg.Store.Retries, Logger: logger})
	out := pub.Publish(cmd.Context(), publish.Artifact{Kind: kind, Path: path, Message: message, Content: content})

	if !out.OK() {
		return fail(printer, output.NewPublishErrorWithCause("publishing "+path+" failed ("+out.Reason()+")", out.Err))
	}
	if printer.IsJSON() {
		return printer.Success(map[string]any{
			"path":     out.Path,
			"status":   string(out.Status),
			"revision": out.Revision,
			"attempts": out.Attempts,
		})
	}
	printer.Status(true, "%s %s (revision %s)", out.Status, out.Path, out.Revision)
	return nil
}
