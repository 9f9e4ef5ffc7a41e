package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thedump/internal/config"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
)

// Starter hands documents to Temporal instead of the in-process pool.
type Starter struct {
	client    tclient.Client
	taskQueue string
	template  DocumentPipelineInput
}

func NewStarter(c tclient.Client, cfg config.Config) *Starter {
	return &Starter{
		client:    c,
		taskQueue: cfg.TemporalTaskQueue,
		template: DocumentPipelineInput{
			Timeout:        cfg.DocumentTimeout,
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		},
	}
}

// Enqueue starts the pipeline workflow for documentID. A pipeline that is
// already running for the document is not an error.
func (s *Starter) Enqueue(ctx context.Context, documentID string) error {
	in := s.template
	in.DocumentID = documentID
	_, err := s.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       WorkflowID(documentID),
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, DocumentPipelineWorkflow, in)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		slog.Debug("Pipeline already running.", "documentId", documentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("start pipeline for %s: %w", documentID, err)
	}
	return nil
}
