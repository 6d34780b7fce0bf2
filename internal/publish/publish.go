// Package publish writes generated artifacts into a store.
//
// A publish is one read of the current revision followed by one conditional
// write. Conflicts are never retried: they mean another writer touched the
// file, and the pipeline assumes it is the only writer.
package publish

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/logging"
	"github.com/gorewood/microfactory/internal/store"
)

// ErrEmptyContent is returned for artifacts whose content is empty or
// whitespace-only. Such artifacts are rejected before any store call.
var ErrEmptyContent = errors.New("refusing to publish empty content")

// Artifact is one generated file ready for publishing.
type Artifact struct {
	Kind    extract.Kind
	Path    string
	Message string
	Content string
}

// Status is the result of one publish.
type Status string

// Publish statuses.
const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusFailed  Status = "failed"
)

// Outcome reports what happened to one artifact.
type Outcome struct {
	Path     string
	Status   Status
	Revision string
	Attempts int
	Err      error
}

// OK reports whether the artifact reached the store.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason classifies a failed outcome: "empty", "conflict" or "unavailable".
func (o Outcome) Reason() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, ErrEmptyContent):
		return "empty"
	case errors.Is(o.Err, store.ErrConflict):
		return "conflict"
	default:
		return "unavailable"
	}
}

// Options configures a Publisher.
type Options struct {
	Branch  string
	Retries int           // extra attempts after an unavailable store
	Backoff time.Duration // first retry delay, doubled each attempt
	Logger  *zap.Logger
}

// Publisher publishes artifacts. It holds no state between calls.
type Publisher struct {
	store   store.Store
	branch  string
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// New returns a Publisher writing to s.
func New(s store.Store, opts Options) *Publisher {
	logger := logging.OrNop(opts.Logger)
	retries := max(opts.Retries, 0)
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Publisher{
		store:   s,
		branch:  opts.Branch,
		retries: retries,
		backoff: backoff,
		logger:  logger,
	}
}

// Publish creates or overwrites art.Path with art.Content.
func (p *Publisher) Publish(ctx context.Context, art Artifact) Outcome {
	out := Outcome{Path: art.Path, Status: StatusFailed}
	if strings.TrimSpace(art.Content) == "" {
		out.Err = ErrEmptyContent
		p.logger.Warn("skipping empty artifact", zap.String("path", art.Path))
		return out
	}

	message := art.Message
	if message == "" {
		message = "Publish " + art.Path
	}

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		res, err := p.publishOnce(ctx, art.Path, art.Content, message)
		if err == nil {
			out.Revision = res.Revision
			out.Status = StatusUpdated
			if res.Created {
				out.Status = StatusCreated
			}
			out.Err = nil
			p.logger.Info("published",
				zap.String("path", art.Path),
				zap.String("status", string(out.Status)),
				zap.String("revision", res.Revision))
			return out
		}
		out.Err = err

		if errors.Is(err, store.ErrConflict) {
			p.logger.Warn("publish conflict: file changed since it was read; is another writer using this store?",
				zap.String("path", art.Path), zap.Error(err))
			return out
		}
		if !errors.Is(err, store.ErrUnavailable) || attempt > p.retries {
			p.logger.Error("publish failed",
				zap.String("path", art.Path), zap.Int("attempts", attempt), zap.Error(err))
			return out
		}

		delay := p.backoff * time.Duration(1<<(attempt-1))
		p.logger.Debug("retrying publish",
			zap.String("path", art.Path), zap.Duration("delay", delay), zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			out.Err = err
			return out
		}
	}
}

// publishOnce is exactly one read and one write.
func (p *Publisher) publishOnce(ctx context.Context, path, content, message string) (*store.PutResult, error) {
	revision := ""
	current, err := p.store.Get(ctx, path)
	switch {
	case err == nil:
		revision = current.Revision
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, unavailable(path, err)
	}

	res, err := p.store.Put(ctx, store.PutRequest{
		Path:     path,
		Content:  []byte(content),
		Message:  message,
		Branch:   p.branch,
		Revision: revision,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, unavailable(path, err)
	}
	return res, nil
}

// unavailable makes sure a failure unwraps to store.ErrUnavailable.
func unavailable(path string, err error) error {
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &store.StatusError{Op: "publish", Path: path, Message: err.Error(), Kind: store.ErrUnavailable}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
