package stage

import (
	"context"
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/backend"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/logging"
	"github.com/khushiGit123/jira-gen/internal/run"
)

// Runner executes stage specs against a backend with bounded retries.
// Transport failures are retried with exponential backoff; parse and
// validation failures are not, since identical input rarely parses
// differently twice.
type Runner struct {
	backend backend.Backend
	retry   config.RetryConfig
	logger  *logging.Logger
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// withSleep replaces the backoff sleep. Tests use it to avoid real delays.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// NewRunner creates a Runner.
func NewRunner(b backend.Backend, retry config.RetryConfig, opts ...Option) *Runner {
	r := &Runner{
		backend: b,
		retry:   retry,
		logger:  logging.NopLogger(),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one stage and always returns a StageResult; failures are
// recorded in the result, never propagated as panics or errors.
func (r *Runner) Run(ctx context.Context, spec Spec) run.StageResult {
	result := run.StageResult{
		Stage:     spec.Name,
		Status:    run.StageRunning,
		StartedAt: time.Now(),
	}
	logger := r.logger.WithStage(spec.Name)

	maxAttempts := r.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		raw, err := r.complete(ctx, spec)
		if err != nil {
			lastErr = err
			if !errors.IsRetryable(err) || attempt == maxAttempts {
				break
			}
			delay := r.backoff(attempt)
			logger.Warn("stage attempt failed, backing off",
				"attempt", attempt, "delay", delay.String(), "error", err.Error())
			if serr := r.sleep(ctx, delay); serr != nil {
				lastErr = serr
				break
			}
			continue
		}

		result.RawOutput = raw
		doc, perr := artifact.Parse(raw, spec.Kind)
		if perr != nil {
			// Parse failure is a stage failure, not a retry trigger.
			lastErr = perr
			break
		}

		result.Status = run.StageSucceeded
		result.Document = doc
		result.Confidence = doc.Confidence
		result.CompletedAt = time.Now()
		logger.Info("stage succeeded",
			"attempts", attempt, "confidence", string(doc.Confidence))
		return result
	}

	result.Status = run.StageFailed
	result.CompletedAt = time.Now()
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	logger.Error("stage failed", "attempts", result.Attempts, "error", result.Error)
	return result
}

// complete invokes the backend once under the stage timeout.
func (r *Runner) complete(ctx context.Context, spec Spec) (string, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	return r.backend.Complete(ctx, backend.Request{
		Role:    spec.Role,
		Goal:    spec.Goal,
		Context: spec.Prompt,
	})
}

// backoff returns the delay before the next attempt: base doubled per
// attempt, capped.
func (r *Runner) backoff(attempt int) time.Duration {
	base := time.Duration(r.retry.BackoffBaseMs) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := time.Duration(r.retry.BackoffCapMs) * time.Millisecond
	if cap <= 0 {
		cap = 4 * time.Second
	}
	shift := attempt - 1
	if shift > 20 {
		return cap
	}
	delay := base << shift
	if delay > cap || delay <= 0 {
		delay = cap
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
