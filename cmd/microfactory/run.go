package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/agent"
	"github.com/gorewood/microfactory/internal/catalog"
	"github.com/gorewood/microfactory/internal/config"
	"github.com/gorewood/microfactory/internal/llm"
	"github.com/gorewood/microfactory/internal/output"
	"github.com/gorewood/microfactory/internal/pipeline"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
	"github.com/gorewood/microfactory/internal/store"
)

// generatorFactory builds the text generation capability for a run.
type generatorFactory func(cfg *config.Config, logger *zap.Logger) (agent.Generator, error)

// llmGenerator is the production generatorFactory.
func llmGenerator(cfg *config.Config, logger *zap.Logger) (agent.Generator, error) {
	client, err := llm.New(llm.Options{
		Model:    cfg.LLM.Model,
		Provider: llm.Provider(cfg.LLM.Provider),
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("model resolved",
		zap.String("provider", string(client.Provider())), zap.String("model", client.Model()))
	return agent.WithRetry(agent.NewLLMGenerator(client, 0), cfg.LLM.Retries+1, 0, logger), nil
}

// runFlags holds flag values that override the config file.
type runFlags struct {
	withSQL       bool
	withMarketing bool
	naming        string
	slug          string
	hub           string
	backend       string
	model         string
	provider      string
	dryRun        bool
}

func newRunCmd() *cobra.Command {
	return newRunCmdWith(llmGenerator)
}

func newRunCmdWith(newGen generatorFactory) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and publish one new tool, then refresh the hub",
		Long: `Run the factory once.

Steps: idea, app, optional classification, schema and marketing kit, naming,
publishing each file to <date>-<slug>/, catalog refresh, hub generation and
hub publishing. A generation failure stops the run (exit 2). A file that
cannot be published is reported and the run continues (exit 1 at the end).

Examples:
  microfactory run
  microfactory run --with-sql --with-marketing --naming classify
  microfactory run --naming fixed --slug calculator --hub single
  microfactory run --dry-run --model haiku       # publish to memory only
  microfactory run --store dir                   # write to MICROFACTORY_DIR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, flags, newGen)
		},
	}

	cmd.Flags().BoolVar(&flags.withSQL, "with-sql", false, "Also generate setup_database.sql")
	cmd.Flags().BoolVar(&flags.withMarketing, "with-marketing", false, "Also generate marketing_kit.txt")
	cmd.Flags().StringVar(&flags.naming, "naming", "", "Folder naming: fixed, classify, title, timestamp")
	cmd.Flags().StringVar(&flags.slug, "slug", "", "Slug for --naming fixed and the fallback slug")
	cmd.Flags().StringVar(&flags.hub, "hub", "", "Hub content: catalog (every tool) or single (newest tool)")
	cmd.Flags().StringVar(&flags.backend, "store", "", "Store backend: github, dir, s3, memory")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model name or alias (e.g. haiku, mini, gemini-flash)")
	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "Provider (anthropic, openai, google, local) - inferred if omitted")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Publish to an in-memory store instead of the configured one")

	return cmd
}

// applyRunFlags overlays explicitly set flags on cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	changed := cmd.Flags().Changed
	if changed("with-sql") {
		cfg.Pipeline.WithSQL = flags.withSQL
	}
	if changed("with-marketing") {
		cfg.Pipeline.WithMarketing = flags.withMarketing
	}
	if flags.naming != "" {
		cfg.Pipeline.Naming = flags.naming
	}
	if flags.slug != "" {
		cfg.Pipeline.Slug = flags.slug
	}
	if flags.hub != "" {
		cfg.Pipeline.Hub = flags.hub
	}
	if flags.backend != "" {
		cfg.Store.Backend = flags.backend
	}
	if flags.dryRun {
		cfg.Store.Backend = config.BackendMemory
	}
	if flags.model != "" {
		cfg.LLM.Model = flags.model
	}
	if flags.provider != "" {
		cfg.LLM.Provider = flags.provider
	}
}

func runRun(cmd *cobra.Command, flags runFlags, newGen generatorFactory) error {
	printer := newPrinter(cmd)
	logger := newLogger(cmd)
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fail(printer, err)
	}
	applyRunFlags(cmd, cfg, flags)

	s, err := openStore(cfg)
	if err != nil {
		return fail(printer, err)
	}
	driver, err := buildDriver(cfg, s, logger, newGen)
	if err != nil {
		return fail(printer, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, runErr := driver.Run(ctx)
	exitErr := classifyRunError(runErr)
	return reportRun(printer, run, storeLocation(s), exitErr)
}

// buildDriver wires the store, publisher, catalog, templates and generator
// into a pipeline driver.
func buildDriver(cfg *config.Config, s store.Store, logger *zap.Logger, newGen generatorFactory) (*pipeline.Driver, error) {
	naming, err := pipeline.ParseNaming(cfg.Pipeline.Naming)
	if err != nil {
		return nil, output.NewUserError(err.Error())
	}
	hub, err := pipeline.ParseHubMode(cfg.Pipeline.Hub)
	if err != nil {
		return nil, output.NewUserError(err.Error())
	}

	agents, err := pipeline.LoadAgents(prompt.DefaultLoader())
	if err != nil {
		return nil, output.NewUserError(err.Error())
	}

	gen, err := newGen(cfg, logger)
	if err != nil {
		var exitErr *output.ExitError
		if errors.As(err, &exitErr) {
			return nil, exitErr
		}
		return nil, output.NewUserError(err.Error())
	}

	pub := publish.New(s, publish.Options{
		Branch:  cfg.Store.Branch,
		Retries: cfg.Store.Retries,
		Logger:  logger,
	})
	return pipeline.New(gen, agents, pub, catalog.New(s, logger), pipeline.Options{
		WithSQL:       cfg.Pipeline.WithSQL,
		WithMarketing: cfg.Pipeline.WithMarketing,
		Naming:        naming,
		Slug:          cfg.Pipeline.Slug,
		Hub:           hub,
		Logger:        logger,
	}), nil
}

// classifyRunError maps a driver error to the process exit code.
func classifyRunError(err error) *output.ExitError {
	if err == nil {
		return nil
	}
	var genErr *pipeline.GenerationError
	if errors.As(err, &genErr) {
		return output.NewGenerationErrorWithCause("generation failed at "+genErr.State.String(), genErr.Err)
	}
	var pubErr *pipeline.PublishError
	if errors.As(err, &pubErr) {
		return output.NewPublishErrorWithCause("run finished with unpublished files", pubErr)
	}
	if errors.Is(err, context.Canceled) {
		return output.NewGenerationErrorWithCause("run interrupted", err)
	}
	return output.NewGenerationErrorWithCause("run failed", err)
}

// runReport is the --json form of a finished run.
type runReport struct {
	*pipeline.Run
	State    string `json:"state"`
	Site     string `json:"site,omitempty"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func reportRun(printer *output.Printer, run *pipeline.Run, site string, exitErr *output.ExitError) error {
	report := runReport{Run: run, State: run.State.String(), Site: site}
	if exitErr != nil {
		report.ExitCode = exitErr.Code
		report.Error = exitErr.Message
		if exitErr.Cause != nil {
			report.Error += ": " + exitErr.Cause.Error()
		}
	}

	if printer.IsJSON() {
		if err := printer.WriteJSON(report); err != nil {
			return err
		}
		if exitErr != nil {
			return exitErr
		}
		return nil
	}

	printer.Section("Run " + run.ID)
	printer.KeyValue("Folder", orDash(run.Folder))
	printer.KeyValue("Title", orDash(run.Title))
	printer.KeyValue("State", run.State.String())
	printer.KeyValue("Tools", fmt.Sprintf("%d", len(run.Catalog)))
	if site != "" {
		printer.KeyValue("Site", site)
	}

	rows := make([][]string, 0, len(run.Artifacts)+1)
	for _, a := range run.Artifacts {
		rows = append(rows, resultRow(a))
	}
	if run.Hub != nil {
		rows = append(rows, resultRow(*run.Hub))
	}
	if len(rows) > 0 {
		printer.Println()
		printer.Table([]string{"FILE", "STATUS", "REVISION", "REASON"}, rows)
	}
	for _, name := range run.Fallbacks {
		printer.Warn("%s output had no fenced block; used the raw text", name)
	}
	printer.Println()

	if exitErr != nil {
		printer.Status(false, "%s", exitErr.Message)
		printer.Error(exitErr)
		return exitErr
	}
	printer.Status(true, "published %s", run.Folder)
	return nil
}

func resultRow(r pipeline.Result) []string {
	rev := r.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return []string{r.Path, r.Status, orDash(rev), orDash(r.Reason)}
}
