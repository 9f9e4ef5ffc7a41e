package objectstore

import (
	"context"
	"fmt"
	"io"

	"thedump/internal/models"
)

// Store persists raw uploads under {document_id}/{filename}. Objects are
// write-once: Put on an existing object returns models.ErrConflict.
type Store interface {
	Put(ctx context.Context, documentID, filename, contentType string, data []byte) (models.Locator, error)
	Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error)
	Delete(ctx context.Context, loc models.Locator) error
}

// ReadAll loads a whole object into memory.
func ReadAll(ctx context.Context, s Store, loc models.Locator) ([]byte, error) {
	rc, err := s.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrStorage, loc, err)
	}
	return b, nil
}

// ReadLocator parses raw and reads the object it addresses.
func ReadLocator(ctx context.Context, s Store, raw string) (models.Locator, []byte, error) {
	loc, err := models.ParseLocator(raw)
	if err != nil {
		return models.Locator{}, nil, err
	}
	b, err := ReadAll(ctx, s, loc)
	return loc, b, err
}
