package workflows

import (
	"errors"
	"fmt"
	"time"

	"thedump/internal/activities"
	"thedump/internal/models"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetDocumentProgress = "GetDocumentProgress"

// WorkflowID is the Temporal workflow id for a document. One document has at
// most one running pipeline.
func WorkflowID(documentID string) string {
	return "document-" + documentID
}

// DocumentPipelineWorkflow drives one document from PENDING to a terminal
// status. Pipeline failures end as FAILED records and are not returned as
// workflow errors; the result is the final status.
func DocumentPipelineWorkflow(ctx workflow.Context, input DocumentPipelineInput) (string, error) {
	progress := DocumentProgress{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      string(models.StatusPending),
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentProgress, func() (DocumentProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	timeout := durationOrDefault(input.Timeout, 10*time.Minute)
	maxAttempts := defaultCount(input.MaxAttempts)
	deadline := workflow.Now(ctx).Add(timeout)
	policy := &temporal.RetryPolicy{
		InitialInterval:    durationOrDefault(input.InitialBackoff, 2*time.Second),
		BackoffCoefficient: 2,
		MaximumInterval:    durationOrDefault(input.MaxBackoff, 30*time.Second),
		MaximumAttempts:    int32(maxAttempts),
	}
	logger := workflow.GetLogger(ctx)
	docIn := activities.DocumentInput{DocumentID: input.DocumentID}

	// Every stage shares the document deadline.
	run := func(step, activity string, in any, out any) error {
		progress.CurrentStep = step
		progress.Steps[step] = "processing"
		remaining := deadline.Sub(workflow.Now(ctx))
		if remaining <= 0 {
			progress.Steps[step] = "failed"
			return temporal.NewTimeoutError(enumspb.TIMEOUT_TYPE_SCHEDULE_TO_CLOSE, nil)
		}
		actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			ScheduleToCloseTimeout: remaining,
			StartToCloseTimeout:    remaining,
			RetryPolicy:            policy,
		})
		if err := workflow.ExecuteActivity(actx, activity, in).Get(actx, out); err != nil {
			progress.Steps[step] = "failed"
			return err
		}
		progress.Steps[step] = "done"
		return nil
	}

	fail := func(step string, cause error) (string, error) {
		fctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 30 * time.Second,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2,
				MaximumInterval:    10 * time.Second,
				MaximumAttempts:    5,
			},
		})
		var out activities.DocumentStatusOutput
		if isConflict(cause) {
			logger.Warn("Document changed underneath the pipeline.", "documentId", input.DocumentID, "error", cause)
			if err := workflow.ExecuteActivity(fctx, "DocumentStatusActivity", docIn).Get(fctx, &out); err != nil {
				return "", err
			}
			progress.Status = out.Status
			return out.Status, nil
		}
		message := failureMessage(cause, timeout)
		logger.Error("Document failed.", "documentId", input.DocumentID, "step", step, "error", cause)
		progress.FailReason = message
		if err := workflow.ExecuteActivity(fctx, "FailDocumentActivity", activities.FailDocumentInput{
			DocumentID: input.DocumentID,
			Message:    message,
		}).Get(fctx, &out); err != nil {
			return "", err
		}
		progress.Status = out.Status
		return out.Status, nil
	}

	var claim activities.ClaimOutput
	if err := run("claim", "ClaimDocumentActivity", docIn, &claim); err != nil {
		return "", err
	}
	progress.Status = claim.Status
	if !claim.Claimed {
		logger.Info("Document already claimed, skipping.", "documentId", input.DocumentID, "status", claim.Status)
		return claim.Status, nil
	}

	var text activities.ExtractTextOutput
	if err := run("extract", "ExtractTextActivity", docIn, &text); err != nil {
		return fail("extract", err)
	}

	progress.Status = string(models.StatusIndexingInProgress)
	if err := run("record_text", "RecordTextActivity", activities.RecordTextInput{DocumentID: input.DocumentID, Text: text.Text}, nil); err != nil {
		return fail("record_text", err)
	}
	if err := run("index", "IndexDocumentActivity", docIn, nil); err != nil {
		return fail("index", err)
	}
	if err := run("complete", "CompleteDocumentActivity", docIn, nil); err != nil {
		return fail("complete", err)
	}
	progress.CurrentStep = "done"
	progress.Status = string(models.StatusCompleted)
	return progress.Status, nil
}

func isConflict(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeConflict
}

// failureMessage is the text stored on the FAILED record: the activity's
// own message, without the wrapping Temporal adds around it.
func failureMessage(err error, timeout time.Duration) string {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Sprintf("%s: processing exceeded %s", models.ErrTimeout, timeout)
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
