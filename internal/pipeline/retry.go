package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"thedump/internal/config"
	"thedump/internal/metrics"
	"thedump/internal/models"
)

// RetryPolicy bounds how often a stage is attempted for transient errors.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func PolicyFromConfig(cfg config.Config) RetryPolicy {
	return RetryPolicy{MaxAttempts: cfg.MaxAttempts, InitialBackoff: cfg.InitialBackoff, MaxBackoff: cfg.MaxBackoff}
}

// Backoff is the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// runStage calls fn until it succeeds, fails permanently or runs out of
// attempts, and returns the last error unchanged. Each attempt gets its
// own span and duration sample.
func runStage(ctx context.Context, logCtx *slog.Logger, p RetryPolicy, stage, documentID string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		spanCtx, span := metrics.StartSpan(ctx, stage, documentID, attempt)
		start := time.Now()
		err := fn(spanCtx)
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if err == nil {
			span.End()
			metrics.StageAttempts.WithLabelValues(stage, "ok").Inc()
			return nil
		}
		span.RecordError(err)
		span.End()
		lastErr = err

		if ctx.Err() != nil {
			metrics.StageAttempts.WithLabelValues(stage, "timeout").Inc()
			return err
		}
		if !models.Retryable(err) {
			metrics.StageAttempts.WithLabelValues(stage, "permanent").Inc()
			return err
		}
		metrics.StageAttempts.WithLabelValues(stage, "retry").Inc()
		if attempt == maxAttempts {
			break
		}
		backoff := p.Backoff(attempt)
		logCtx.Warn("Stage failed, will retry.",
			"stage", stage,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		}
	}
	logCtx.Warn("Stage gave up after retries.", "stage", stage, "attempts", maxAttempts, "error", lastErr)
	return lastErr
}
