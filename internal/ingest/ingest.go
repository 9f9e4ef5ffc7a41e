package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"thedump/internal/metrics"
	"thedump/internal/models"
	"thedump/internal/objectstore"
	"thedump/internal/pipeline"
	"thedump/internal/storage"
	"thedump/internal/util"

	"github.com/google/uuid"
)

var ErrTooLarge = fmt.Errorf("%w: file too large", models.ErrValidation)

type Receipt struct {
	DocumentID string `json:"document_id"`
	Accepted   bool   `json:"accepted"`
	RetryOf    string `json:"retry_of,omitempty"`
}

// Service accepts uploads: raw bytes go to the object store, a PENDING
// record to the status store, and the id to the pipeline.
type Service struct {
	objects  objectstore.Store
	store    storage.StatusStore
	enqueuer pipeline.Enqueuer
	maxBytes int64
	newID    func() string
}

func NewService(objects objectstore.Store, store storage.StatusStore, enqueuer pipeline.Enqueuer, maxBytes int64) *Service {
	return &Service{objects: objects, store: store, enqueuer: enqueuer, maxBytes: maxBytes, newID: uuid.NewString}
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (Receipt, error) {
	name := util.CleanFilename(filename)
	switch {
	case name == "":
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return Receipt{}, fmt.Errorf("%w: filename must not be empty", models.ErrValidation)
	case len(data) == 0:
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return Receipt{}, fmt.Errorf("%w: file is empty", models.ErrValidation)
	case s.maxBytes > 0 && int64(len(data)) > s.maxBytes:
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return Receipt{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrTooLarge, len(data), s.maxBytes)
	}
	return s.accept(ctx, name, contentType, data, "")
}

// Resubmit copies the bytes of a FAILED document into a new document. The
// failed record itself is left untouched.
func (s *Service) Resubmit(ctx context.Context, documentID string) (Receipt, error) {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return Receipt{}, err
	}
	if doc.Status != models.StatusFailed {
		return Receipt{}, fmt.Errorf("%w: only FAILED documents can be retried, %s is %s", models.ErrValidation, documentID, doc.Status)
	}
	_, data, err := objectstore.ReadLocator(ctx, s.objects, doc.StorageURI)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: read original upload: %w", models.ErrStorage, err)
	}
	return s.accept(ctx, doc.Filename, doc.ContentType, data, doc.DocumentID)
}

func (s *Service) accept(ctx context.Context, filename, contentType string, data []byte, retryOf string) (Receipt, error) {
	if strings.TrimSpace(contentType) == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	id := s.newID()
	logCtx := slog.With("documentId", id, "filename", filename)

	loc, err := s.objects.Put(ctx, id, filename, contentType, data)
	if err != nil {
		metrics.Uploads.WithLabelValues("storage_error").Inc()
		logCtx.Error("Object write failed.", "error", err)
		if !errors.Is(err, models.ErrStorage) {
			err = fmt.Errorf("%w: %w", models.ErrStorage, err)
		}
		return Receipt{}, err
	}

	doc := models.Document{
		DocumentID:  id,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Checksum:    util.SHA256Hex(data),
		StorageURI:  loc.String(),
		Status:      models.StatusPending,
		RetryOf:     retryOf,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		metrics.Uploads.WithLabelValues("storage_error").Inc()
		if derr := s.objects.Delete(context.WithoutCancel(ctx), loc); derr != nil {
			logCtx.Error("Could not remove orphaned object.", "object", loc.String(), "error", derr)
		}
		logCtx.Error("Status record write failed.", "error", err)
		return Receipt{}, fmt.Errorf("%w: create status record: %w", models.ErrStorage, err)
	}

	if err := s.enqueuer.Enqueue(ctx, id); err != nil {
		logCtx.Warn("Enqueue failed, the requeue sweep will pick the document up.", "error", err)
	}
	metrics.Uploads.WithLabelValues("accepted").Inc()
	logCtx.Info("Upload accepted.", "sizeBytes", doc.SizeBytes, "object", doc.StorageURI, "retryOf", retryOf)
	return Receipt{DocumentID: id, Accepted: true, RetryOf: retryOf}, nil
}
