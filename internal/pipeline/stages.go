package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"thedump/internal/extract"
	"thedump/internal/metrics"
	"thedump/internal/models"
	"thedump/internal/search"
	"thedump/internal/storage"
	"thedump/internal/util"
)

const (
	StageClaim    = "claim"
	StageExtract  = "extract"
	StageRecord   = "record_text"
	StageIndex    = "index"
	StageComplete = "complete"
	StageFail     = "fail"
)

// Stages are the individual steps of the document lifecycle. Every status
// change is a compare-and-set in the status store, so two runtimes racing on
// the same document cannot both advance it. Both the in-process runner and
// the Temporal activities call these.
type Stages struct {
	store     storage.StatusStore
	extractor extract.Extractor
	index     search.Index
}

func NewStages(store storage.StatusStore, extractor extract.Extractor, index search.Index) *Stages {
	return &Stages{store: store, extractor: extractor, index: index}
}

func (s *Stages) Store() storage.StatusStore { return s.store }

func (s *Stages) transition(ctx context.Context, id string, from, to models.Status, upd models.Update) (models.Document, error) {
	doc, err := s.store.Transition(ctx, id, from, to, upd)
	if err != nil {
		return models.Document{}, err
	}
	metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	return doc, nil
}

// Claim moves a PENDING document to OCR_IN_PROGRESS. It returns
// models.ErrConflict when another worker already owns the document.
func (s *Stages) Claim(ctx context.Context, documentID string) (models.Document, error) {
	return s.transition(ctx, documentID, models.StatusPending, models.StatusOCRInProgress, models.Update{})
}

// Extract runs the extractor. Its error text is kept as is so it can be
// stored on the failed document.
func (s *Stages) Extract(ctx context.Context, doc models.Document) (string, error) {
	loc, err := models.ParseLocator(doc.StorageURI)
	if err != nil {
		return "", models.Tag(models.ErrExtraction, err)
	}
	text, err := s.extractor.Extract(ctx, loc)
	if err != nil {
		return "", models.Tag(models.ErrExtraction, err)
	}
	return text, nil
}

// RecordText attaches the sanitized transcript and moves the document to
// INDEXING_IN_PROGRESS. An empty transcript is accepted here.
func (s *Stages) RecordText(ctx context.Context, documentID, text string) (models.Document, error) {
	clean := strings.TrimSpace(util.SanitizeText(text))
	return s.transition(ctx, documentID, models.StatusOCRInProgress, models.StatusIndexingInProgress, models.Update{ExtractedText: &clean})
}

// Index submits the document text to the search index. A document without
// text can never be COMPLETED, so it fails permanently.
func (s *Stages) Index(ctx context.Context, doc models.Document) error {
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return fmt.Errorf("%w: %w", models.ErrIndex, models.ErrNoExtractableText)
	}
	if err := s.index.Index(ctx, doc.DocumentID, doc.Filename, doc.ExtractedText); err != nil {
		if !errors.Is(err, models.ErrIndex) {
			err = fmt.Errorf("%w: %w", models.ErrIndex, err)
		}
		return err
	}
	return nil
}

func (s *Stages) Complete(ctx context.Context, documentID string) (models.Document, error) {
	return s.transition(ctx, documentID, models.StatusIndexingInProgress, models.StatusCompleted, models.Update{})
}

// Fail marks a non-terminal document FAILED with message. Terminal
// documents are returned unchanged.
func (s *Stages) Fail(ctx context.Context, documentID, message string) (models.Document, error) {
	for attempt := 0; attempt < 3; attempt++ {
		doc, err := s.store.Get(ctx, documentID)
		if err != nil {
			return models.Document{}, err
		}
		if doc.Status.Terminal() {
			return doc, nil
		}
		out, err := s.FailFrom(ctx, doc, message)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		return out, err
	}
	return models.Document{}, fmt.Errorf("%w: document %s kept changing while failing it", models.ErrConflict, documentID)
}

// FailFrom fails doc only if it is still in the status it was read with.
// The document is also removed from the search index.
func (s *Stages) FailFrom(ctx context.Context, doc models.Document, message string) (models.Document, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "processing failed"
	}
	out, err := s.transition(ctx, doc.DocumentID, doc.Status, models.StatusFailed, models.Update{ErrorMessage: message})
	if err != nil {
		return models.Document{}, err
	}
	if err := s.index.Delete(ctx, doc.DocumentID); err != nil {
		slog.Warn("failed document could not be removed from index", "documentId", doc.DocumentID, "error", err)
	}
	return out, nil
}
