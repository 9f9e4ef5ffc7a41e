package activities

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"thedump/internal/metrics"
	"thedump/internal/models"
	"thedump/internal/pipeline"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Application error types the workflow branches on.
const (
	ErrTypeConflict  = "Conflict"
	ErrTypePermanent = "Permanent"
)

type Activities struct {
	stages *pipeline.Stages
}

func New(stages *pipeline.Stages) *Activities {
	return &Activities{stages: stages}
}

func (a *Activities) ClaimDocumentActivity(ctx context.Context, in DocumentInput) (ClaimOutput, error) {
	doc, err := a.stages.Claim(ctx, in.DocumentID)
	if errors.Is(err, models.ErrConflict) {
		current, getErr := a.stages.Store().Get(ctx, in.DocumentID)
		if getErr != nil {
			return ClaimOutput{}, toActivityError(getErr)
		}
		return ClaimOutput{Claimed: false, Status: string(current.Status)}, nil
	}
	if err != nil {
		return ClaimOutput{}, toActivityError(err)
	}
	return ClaimOutput{Claimed: true, Status: string(doc.Status)}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in DocumentInput) (ExtractTextOutput, error) {
	var text string
	err := observe(ctx, pipeline.StageExtract, in.DocumentID, func(ctx context.Context) error {
		doc, err := a.stages.Store().Get(ctx, in.DocumentID)
		if err != nil {
			return err
		}
		text, err = a.stages.Extract(ctx, doc)
		return err
	})
	if err != nil {
		return ExtractTextOutput{}, toActivityError(err)
	}
	return ExtractTextOutput{Text: text}, nil
}

func (a *Activities) RecordTextActivity(ctx context.Context, in RecordTextInput) error {
	err := observe(ctx, pipeline.StageRecord, in.DocumentID, func(ctx context.Context) error {
		_, err := a.stages.RecordText(ctx, in.DocumentID, in.Text)
		return err
	})
	return toActivityError(err)
}

func (a *Activities) IndexDocumentActivity(ctx context.Context, in DocumentInput) error {
	err := observe(ctx, pipeline.StageIndex, in.DocumentID, func(ctx context.Context) error {
		doc, err := a.stages.Store().Get(ctx, in.DocumentID)
		if err != nil {
			return err
		}
		return a.stages.Index(ctx, doc)
	})
	return toActivityError(err)
}

func (a *Activities) CompleteDocumentActivity(ctx context.Context, in DocumentInput) error {
	err := observe(ctx, pipeline.StageComplete, in.DocumentID, func(ctx context.Context) error {
		_, err := a.stages.Complete(ctx, in.DocumentID)
		return err
	})
	return toActivityError(err)
}

func (a *Activities) FailDocumentActivity(ctx context.Context, in FailDocumentInput) (DocumentStatusOutput, error) {
	doc, err := a.stages.Fail(ctx, in.DocumentID, in.Message)
	if err != nil {
		return DocumentStatusOutput{}, toActivityError(err)
	}
	slog.Error("Document failed.", "documentId", in.DocumentID, "status", doc.Status, "error", in.Message)
	return DocumentStatusOutput{Status: string(doc.Status)}, nil
}

func (a *Activities) DocumentStatusActivity(ctx context.Context, in DocumentInput) (DocumentStatusOutput, error) {
	doc, err := a.stages.Store().Get(ctx, in.DocumentID)
	if err != nil {
		return DocumentStatusOutput{}, toActivityError(err)
	}
	return DocumentStatusOutput{Status: string(doc.Status)}, nil
}

func observe(ctx context.Context, stage, documentID string, fn func(context.Context) error) error {
	attempt := 1
	if activity.IsActivity(ctx) {
		attempt = int(activity.GetInfo(ctx).Attempt)
	}
	ctx, span := metrics.StartSpan(ctx, stage, documentID, attempt)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		span.RecordError(err)
		outcome = "permanent"
		if models.Retryable(err) {
			outcome = "retry"
		}
	}
	metrics.StageAttempts.WithLabelValues(stage, outcome).Inc()
	return err
}

// toActivityError lets Temporal retry transient failures and stops it from
// retrying everything else.
func toActivityError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrConflict) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConflict, nil)
	}
	if !models.Retryable(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePermanent, nil)
	}
	return err
}
