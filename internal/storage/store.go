package storage

import (
	"context"
	"time"

	"thedump/internal/models"
)

// StatusStore is the single source of truth for document lifecycle state.
// Transition is a compare-and-set: it applies only when the stored status
// equals from, and returns models.ErrConflict otherwise.
type StatusStore interface {
	Create(ctx context.Context, doc models.Document) error
	Get(ctx context.Context, documentID string) (models.Document, error)
	GetMany(ctx context.Context, documentIDs []string) (map[string]models.Document, error)
	Transition(ctx context.Context, documentID string, from, to models.Status, upd models.Update) (models.Document, error)
	ListByStatus(ctx context.Context, statuses []models.Status, updatedBefore time.Time, limit int) ([]models.Document, error)
	Close() error
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func applyUpdate(doc *models.Document, to models.Status, upd models.Update, now time.Time) {
	doc.Status = to
	if upd.ExtractedText != nil {
		doc.ExtractedText = *upd.ExtractedText
	}
	doc.ErrorMessage = upd.ErrorMessage
	doc.UpdatedAt = now
}
