// Package pipeline drives one run of the factory: generate an idea and a
// tool, publish the tool's files, refresh the catalog and republish the hub.
//
// A run is strictly sequential. Generation failures end the run; publish
// failures are recorded and the run carries on to the hub.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/agent"
	"github.com/gorewood/microfactory/internal/catalog"
	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/logging"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
)

// Published file names.
const (
	AppFile       = "index.html"
	SchemaFile    = "setup_database.sql"
	MarketingFile = "marketing_kit.txt"
	HubFile       = "index.html"
)

// Publisher publishes one artifact.
type Publisher interface {
	Publish(ctx context.Context, art publish.Artifact) publish.Outcome
}

// Catalog lists published tools.
type Catalog interface {
	ListPublishedTools(ctx context.Context) []string
}

// Agents are the personas a run uses.
type Agents struct {
	Idea      agent.Agent
	App       agent.Agent
	Classify  agent.Agent
	Schema    agent.Agent
	Marketing agent.Agent
	Hub       agent.Agent
}

// LoadAgents builds every agent from its template.
func LoadAgents(l *prompt.Loader) (Agents, error) {
	var agents Agents
	slots := []struct {
		name string
		dst  *agent.Agent
	}{
		{prompt.Idea, &agents.Idea},
		{prompt.App, &agents.App},
		{prompt.Classify, &agents.Classify},
		{prompt.Schema, &agents.Schema},
		{prompt.Marketing, &agents.Marketing},
		{prompt.Hub, &agents.Hub},
	}
	for _, s := range slots {
		tmpl, err := l.Load(s.name)
		if err != nil {
			return Agents{}, err
		}
		a, err := agent.FromTemplate(tmpl)
		if err != nil {
			return Agents{}, err
		}
		*s.dst = a
	}
	return agents, nil
}

// Options configures a Driver.
type Options struct {
	WithSQL       bool
	WithMarketing bool
	Naming        Naming
	Slug          string // used by NamingFixed and as the fallback slug
	Hub           HubMode
	Now           func() time.Time
	Logger        *zap.Logger
}

// Result is the publish outcome of one file.
type Result struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// Published reports whether the file reached the store.
	Published bool `json:"published"`
}

// Run is the record of one pipeline run.
type Run struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Folder    string   `json:"folder,omitempty"`
	Title     string   `json:"title,omitempty"`
	Idea      string   `json:"idea,omitempty"`
	State     State    `json:"-"`
	Artifacts []Result `json:"artifacts"`
	Hub       *Result  `json:"hub,omitempty"`
	Catalog   []string `json:"catalog"`
	Fallbacks []string `json:"extraction_fallbacks,omitempty"`
}

// Failed returns the files that could not be published.
func (r *Run) Failed() []Result {
	var failed []Result
	for _, a := range r.Artifacts {
		if !a.Published {
			failed = append(failed, a)
		}
	}
	if r.Hub != nil && !r.Hub.Published {
		failed = append(failed, *r.Hub)
	}
	return failed
}

// GenerationError means the generation capability gave up at State.
type GenerationError struct {
	State State
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.State, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PublishError lists the files a finished run could not publish.
type PublishError struct {
	Failed []Result
}

func (e *PublishError) Error() string {
	paths := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		paths[i] = f.Path
	}
	return fmt.Sprintf("%d file(s) not published: %s", len(e.Failed), strings.Join(paths, ", "))
}

// Driver runs the pipeline.
type Driver struct {
	gen     agent.Generator
	agents  Agents
	pub     Publisher
	catalog Catalog
	opts    Options
	logger  *zap.Logger
}

// New returns a Driver.
func New(gen agent.Generator, agents Agents, pub Publisher, cat Catalog, opts Options) *Driver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Naming == "" {
		opts.Naming = NamingTitle
	}
	if opts.Hub == "" {
		opts.Hub = HubCatalog
	}
	if extract.Slugify(opts.Slug) == "" {
		opts.Slug = "tool"
	}
	logger := logging.OrNop(opts.Logger)
	return &Driver{gen: gen, agents: agents, pub: pub, catalog: cat, opts: opts, logger: logger}
}

// Run executes one run. The returned Run is never nil and reflects how far
// the run got. The error is a *GenerationError when generation gave up, a
// *PublishError when the run finished with unpublished files, or nil.
func (d *Driver) Run(ctx context.Context) (*Run, error) {
	now := d.opts.Now()
	run := &Run{
		Date:      now.Format("2006-01-02"),
		Artifacts: []Result{},
		Catalog:   []string{},
	}
	run.ID = run.Date + "-" + uuid.NewString()[:8]
	log := d.logger.With(zap.String("run_id", run.ID))

	vars := map[string]string{"date": run.Date}

	d.enter(log, run, StateIdeaGeneration)
	vars["catalog"] = catalog.Describe(d.catalog.ListPublishedTools(ctx))
	idea, err := d.generate(ctx, log, run, d.agents.Idea, vars)
	if err != nil {
		return run, err
	}
	run.Idea = idea
	vars["idea"] = idea

	d.enter(log, run, StateArtifactGeneration)
	app, err := d.generate(ctx, log, run, d.agents.App, vars)
	if err != nil {
		return run, err
	}
	run.Title = extract.Title(app)
	if run.Title == "" {
		run.Title = firstLine(idea)
	}

	category := ""
	if d.opts.Naming == NamingClassify {
		d.enter(log, run, StateClassification)
		if category, err = d.generate(ctx, log, run, d.agents.Classify, vars); err != nil {
			return run, err
		}
	}

	var schema, marketing string
	if d.opts.WithSQL {
		d.enter(log, run, StateSchemaGeneration)
		if schema, err = d.generate(ctx, log, run, d.agents.Schema, vars); err != nil {
			return run, err
		}
	}
	if d.opts.WithMarketing {
		d.enter(log, run, StateMarketingGeneration)
		if marketing, err = d.generate(ctx, log, run, d.agents.Marketing, vars); err != nil {
			return run, err
		}
	}

	d.enter(log, run, StateNaming)
	run.Folder = run.Date + "-" + d.slug(now, category, app)
	log.Info("tool named", zap.String("folder", run.Folder), zap.String("title", run.Title))

	d.enter(log, run, StatePublish)
	run.Artifacts = append(run.Artifacts, d.publish(ctx, "app", publish.Artifact{
		Kind:    extract.KindHTML,
		Path:    run.Folder + "/" + AppFile,
		Message: fmt.Sprintf("Add %s (%s)", run.Title, run.Folder),
		Content: app,
	}))
	if d.opts.WithSQL {
		run.Artifacts = append(run.Artifacts, d.publish(ctx, "schema", publish.Artifact{
			Kind:    extract.KindSQL,
			Path:    run.Folder + "/" + SchemaFile,
			Message: "Add database schema for " + run.Folder,
			Content: schema,
		}))
	}
	if d.opts.WithMarketing {
		run.Artifacts = append(run.Artifacts, d.publish(ctx, "marketing", publish.Artifact{
			Kind:    extract.KindText,
			Path:    run.Folder + "/" + MarketingFile,
			Message: "Add marketing kit for " + run.Folder,
			Content: marketing,
		}))
	}

	d.enter(log, run, StateCatalogRefresh)
	run.Catalog = d.catalog.ListPublishedTools(ctx)
	if run.Artifacts[0].Published && !slices.Contains(run.Catalog, run.Folder) {
		log.Debug("listing does not show the new tool yet", zap.String("folder", run.Folder))
		run.Catalog = append(run.Catalog, run.Folder)
	}

	d.enter(log, run, StateHubGeneration)
	linked := run.Catalog
	if d.opts.Hub == HubSingle {
		linked = []string{run.Folder}
	}
	vars["catalog"] = catalog.Describe(linked)
	vars["folder"] = run.Folder
	vars["tool_title"] = run.Title
	hub, err := d.generate(ctx, log, run, d.agents.Hub, vars)
	if err != nil {
		return run, err
	}

	d.enter(log, run, StateHubPublish)
	hubResult := d.publish(ctx, "hub", publish.Artifact{
		Kind:    extract.KindHTML,
		Path:    HubFile,
		Message: fmt.Sprintf("Update hub: %d tool(s)", len(linked)),
		Content: hub,
	})
	run.Hub = &hubResult

	d.enter(log, run, StateDone)
	if failed := run.Failed(); len(failed) > 0 {
		return run, &PublishError{Failed: failed}
	}
	return run, nil
}

func (d *Driver) enter(log *zap.Logger, run *Run, s State) {
	run.State = s
	log.Debug("state", zap.Stringer("state", s))
}

// generate runs one agent. Errors come back as *GenerationError.
func (d *Driver) generate(ctx context.Context, log *zap.Logger, run *Run, a agent.Agent, vars map[string]string) (string, error) {
	started := time.Now()
	body, fellBack, err := a.Run(ctx, d.gen, vars)
	if err != nil {
		log.Error("generation failed", zap.Stringer("state", run.State), zap.Error(err))
		return "", &GenerationError{State: run.State, Err: err}
	}
	if fellBack && a.Kind != extract.KindText {
		log.Warn("no fenced block in output, using raw text",
			zap.String("agent", a.Name), zap.String("kind", string(a.Kind)))
		run.Fallbacks = append(run.Fallbacks, a.Name)
	}
	log.Info("generated", zap.String("agent", a.Name),
		zap.Int("bytes", len(body)), zap.Duration("took", time.Since(started)))
	return body, nil
}

func (d *Driver) publish(ctx context.Context, name string, art publish.Artifact) Result {
	out := d.pub.Publish(ctx, art)
	res := Result{
		Name:      name,
		Path:      art.Path,
		Status:    string(out.Status),
		Revision:  out.Revision,
		Reason:    out.Reason(),
		Published: out.OK(),
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res
}

// slug picks the folder slug for the configured naming mode, falling back to
// the configured slug when the preferred source is empty.
func (d *Driver) slug(now time.Time, category, app string) string {
	var s string
	switch d.opts.Naming {
	case NamingFixed:
		s = extract.Slugify(d.opts.Slug)
	case NamingClassify:
		s = extract.Slugify(firstLine(category))
	case NamingTitle:
		s = extract.Slugify(extract.Title(app))
	case NamingTimestamp:
		s = now.Format("150405")
	}
	if s == "" {
		s = extract.Slugify(d.opts.Slug)
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.Trim(strings.TrimSpace(line), "#*_ ")
}

// IsGenerationError reports whether err ended a run during generation.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
