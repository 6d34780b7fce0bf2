package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/llm"
	"github.com/gorewood/microfactory/internal/logging"
)

// WithRetry retries g up to attempts times with exponential backoff starting
// at base. Permanent errors (bad request, missing key) and a done context stop
// immediately.
func WithRetry(g Generator, attempts int, base time.Duration, logger *zap.Logger) Generator {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 2 * time.Second
	}
	return &retrying{next: g, attempts: attempts, base: base, logger: logging.OrNop(logger)}
}

type retrying struct {
	next     Generator
	attempts int
	base     time.Duration
	logger   *zap.Logger
}

func (r *retrying) Generate(ctx context.Context, instructions string) (string, error) {
	var last error
	for i := 0; i < r.attempts; i++ {
		out, err := r.next.Generate(ctx, instructions)
		if err == nil {
			return out, nil
		}
		last = err
		if llm.IsPermanent(err) || ctx.Err() != nil || i == r.attempts-1 {
			break
		}

		delay := r.base * time.Duration(1<<i)
		r.logger.Warn("generation failed, retrying",
			zap.Int("attempt", i+1), zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", last
}
