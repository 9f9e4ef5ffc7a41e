package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thedump/internal/models"
)

// Runner drives one document from PENDING to a terminal status inside the
// current process.
type Runner struct {
	stages  *Stages
	policy  RetryPolicy
	timeout time.Duration
}

func NewRunner(stages *Stages, policy RetryPolicy, timeout time.Duration) *Runner {
	return &Runner{stages: stages, policy: policy, timeout: timeout}
}

// Process never reports pipeline failures as errors: those end as FAILED
// records. It returns an error only when the document cannot be claimed
// for a reason other than being owned by someone else.
func (r *Runner) Process(ctx context.Context, documentID string) (models.Status, error) {
	logCtx := slog.With("documentId", documentID)
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var doc models.Document
	err := runStage(runCtx, logCtx, r.policy, StageClaim, documentID, func(ctx context.Context) error {
		var err error
		doc, err = r.stages.Claim(ctx, documentID)
		return err
	})
	if errors.Is(err, models.ErrConflict) {
		current, getErr := r.stages.Store().Get(ctx, documentID)
		if getErr != nil {
			return "", getErr
		}
		logCtx.Debug("Document already claimed, skipping.", "status", current.Status)
		return current.Status, nil
	}
	if err != nil {
		return "", fmt.Errorf("claim document %s: %w", documentID, err)
	}
	logCtx.Info("Document claimed.", "filename", doc.Filename)

	var text string
	err = runStage(runCtx, logCtx, r.policy, StageExtract, documentID, func(ctx context.Context) error {
		var err error
		text, err = r.stages.Extract(ctx, doc)
		return err
	})
	if err != nil {
		return r.fail(ctx, runCtx, logCtx, documentID, err)
	}

	err = runStage(runCtx, logCtx, r.policy, StageRecord, documentID, func(ctx context.Context) error {
		var err error
		doc, err = r.stages.RecordText(ctx, documentID, text)
		return err
	})
	if err != nil {
		return r.fail(ctx, runCtx, logCtx, documentID, err)
	}

	err = runStage(runCtx, logCtx, r.policy, StageIndex, documentID, func(ctx context.Context) error {
		return r.stages.Index(ctx, doc)
	})
	if err != nil {
		return r.fail(ctx, runCtx, logCtx, documentID, err)
	}

	err = runStage(runCtx, logCtx, r.policy, StageComplete, documentID, func(ctx context.Context) error {
		var err error
		doc, err = r.stages.Complete(ctx, documentID)
		return err
	})
	if err != nil {
		return r.fail(ctx, runCtx, logCtx, documentID, err)
	}
	logCtx.Info("Document completed.", "textLength", len(doc.ExtractedText))
	return models.StatusCompleted, nil
}

// fail records the failure even when runCtx has expired. When the parent
// context is gone (shutdown) the document is left for the watchdog.
func (r *Runner) fail(parent, runCtx context.Context, logCtx *slog.Logger, documentID string, cause error) (models.Status, error) {
	if errors.Is(cause, models.ErrConflict) {
		current, err := r.stages.Store().Get(context.WithoutCancel(parent), documentID)
		if err != nil {
			return "", err
		}
		logCtx.Warn("Document changed underneath the pipeline.", "status", current.Status, "error", cause)
		return current.Status, nil
	}
	if parent.Err() != nil {
		logCtx.Warn("Pipeline interrupted, leaving document for the watchdog.", "error", cause)
		return "", parent.Err()
	}

	message := cause.Error()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		message = fmt.Sprintf("%s: processing exceeded %s: %v", models.ErrTimeout, r.timeout, cause)
	}
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer cancel()
	doc, err := r.stages.Fail(failCtx, documentID, message)
	if err != nil {
		logCtx.Error("Could not record document failure.", "error", err, "cause", cause)
		return "", fmt.Errorf("record failure of %s: %w", documentID, err)
	}
	logCtx.Error("Document failed.", "status", doc.Status, "error", message)
	return doc.Status, nil
}
