package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"thedump/internal/models"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const gcsScheme = "gs"

type GCSStore struct {
	bucketName string
	bucket     *storage.BucketHandle
}

func NewGCSStore(client *storage.Client, bucketName string) *GCSStore {
	return &GCSStore{bucketName: bucketName, bucket: client.Bucket(bucketName)}
}

func (s *GCSStore) Put(ctx context.Context, documentID, filename, contentType string, data []byte) (models.Locator, error) {
	loc := models.Locator{Scheme: gcsScheme, Bucket: s.bucketName, DocumentID: documentID, Filename: filename}
	w := s.bucket.Object(loc.ObjectName()).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return models.Locator{}, s.writeErr(loc, err)
	}
	if err := w.Close(); err != nil {
		return models.Locator{}, s.writeErr(loc, err)
	}
	return loc, nil
}

func (s *GCSStore) writeErr(loc models.Locator, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 412 {
		slog.Warn("object already exists", "object", loc.ObjectName())
		return fmt.Errorf("%w: object %s already exists", models.ErrConflict, loc)
	}
	return fmt.Errorf("%w: write %s: %v", models.ErrStorage, loc, err)
}

func (s *GCSStore) Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error) {
	if err := s.owns(loc); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(loc.ObjectName()).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: object %s", models.ErrNotFound, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrStorage, loc, err)
	}
	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, loc models.Locator) error {
	if err := s.owns(loc); err != nil {
		return err
	}
	err := s.bucket.Object(loc.ObjectName()).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: delete %s: %v", models.ErrStorage, loc, err)
	}
	return nil
}

func (s *GCSStore) owns(loc models.Locator) error {
	if loc.Scheme != gcsScheme || loc.Bucket != s.bucketName {
		return fmt.Errorf("%w: locator %s does not belong to bucket %s", models.ErrValidation, loc, s.bucketName)
	}
	return nil
}
