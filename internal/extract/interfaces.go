package extract

import (
	"context"

	"thedump/internal/models"
)

// Input is what a backend sees: the stored object, its MIME type and its
// bytes. Backends that can read the object in place (Vertex on gs://) may
// ignore Data.
type Input struct {
	Locator  models.Locator
	MIMEType string
	Data     []byte
}

// Backend is a single OCR or text-layer engine. Extract returns
// models.ErrNoExtractableText when the file holds no text it can read.
type Backend interface {
	Name() string
	Supports(ext string) bool
	Extract(ctx context.Context, in Input) (string, error)
}

// Extractor turns a stored file into flat text. It never retries.
type Extractor interface {
	Extract(ctx context.Context, loc models.Locator) (string, error)
}
