package activities

import (
	"context"
	"errors"
	"testing"

	"thedump/internal/models"
	"thedump/internal/pipeline"
	"thedump/internal/search"
	"thedump/internal/storage"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type extractFunc func(ctx context.Context, loc models.Locator) (string, error)

func (f extractFunc) Extract(ctx context.Context, loc models.Locator) (string, error) {
	return f(ctx, loc)
}

func newActivities(t *testing.T, ex extractFunc) (*Activities, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), models.Document{
		DocumentID: "doc-1",
		Filename:   "memo.pdf",
		StorageURI: "gs://dump-raw/doc-1/memo.pdf",
		Status:     models.StatusPending,
	}))
	stages := pipeline.NewStages(store, ex, search.NewMemoryIndex(search.Highlight{}))
	return New(stages), store
}

func TestActivitiesDriveDocumentToCompleted(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a, store := newActivities(t, func(context.Context, models.Locator) (string, error) {
		return "quarterly memo", nil
	})
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.ClaimDocumentActivity, DocumentInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	var claim ClaimOutput
	require.NoError(t, val.Get(&claim))
	require.True(t, claim.Claimed)
	require.Equal(t, string(models.StatusOCRInProgress), claim.Status)

	val, err = env.ExecuteActivity(a.ExtractTextActivity, DocumentInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	var text ExtractTextOutput
	require.NoError(t, val.Get(&text))
	require.Equal(t, "quarterly memo", text.Text)

	_, err = env.ExecuteActivity(a.RecordTextActivity, RecordTextInput{DocumentID: "doc-1", Text: text.Text})
	require.NoError(t, err)
	_, err = env.ExecuteActivity(a.IndexDocumentActivity, DocumentInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	_, err = env.ExecuteActivity(a.CompleteDocumentActivity, DocumentInput{DocumentID: "doc-1"})
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, doc.Status)
	require.Equal(t, "quarterly memo", doc.ExtractedText)
}

func TestClaimReportsOwnedDocument(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a, store := newActivities(t, nil)
	env.RegisterActivity(a)
	_, err := store.Transition(context.Background(), "doc-1", models.StatusPending, models.StatusOCRInProgress, models.Update{})
	require.NoError(t, err)

	val, err := env.ExecuteActivity(a.ClaimDocumentActivity, DocumentInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	var claim ClaimOutput
	require.NoError(t, val.Get(&claim))
	require.False(t, claim.Claimed)
	require.Equal(t, string(models.StatusOCRInProgress), claim.Status)
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a, store := newActivities(t, func(context.Context, models.Locator) (string, error) {
		return "", models.ErrUnsupportedFormat
	})
	env.RegisterActivity(a)
	_, err := store.Transition(context.Background(), "doc-1", models.StatusPending, models.StatusOCRInProgress, models.Update{})
	require.NoError(t, err)

	_, err = env.ExecuteActivity(a.ExtractTextActivity, DocumentInput{DocumentID: "doc-1"})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
	require.Equal(t, ErrTypePermanent, appErr.Type())
	require.Equal(t, "unsupported format", appErr.Message())
}

func TestToActivityError(t *testing.T) {
	require.NoError(t, toActivityError(nil))

	transient := models.Transient(errors.New("backend busy"))
	require.Equal(t, transient, toActivityError(transient))

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(toActivityError(models.ErrConflict), &appErr))
	require.Equal(t, ErrTypeConflict, appErr.Type())
}

func TestFailDocumentActivityIsIdempotent(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a, _ := newActivities(t, nil)
	env.RegisterActivity(a)

	for i := 0; i < 2; i++ {
		val, err := env.ExecuteActivity(a.FailDocumentActivity, FailDocumentInput{DocumentID: "doc-1", Message: "extraction error: bad scan"})
		require.NoError(t, err)
		var out DocumentStatusOutput
		require.NoError(t, val.Get(&out))
		require.Equal(t, string(models.StatusFailed), out.Status)
	}
}
