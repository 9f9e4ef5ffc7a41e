package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"thedump/internal/models"
	"thedump/internal/util"
)

const fileScheme = "file"

// LocalStore keeps objects on the local filesystem. Its locators are
// file://<absolute root>/<document_id>/<filename>.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	if err := util.EnsureDir(abs); err != nil {
		return nil, err
	}
	return &LocalStore{root: filepath.ToSlash(abs)}, nil
}

func (s *LocalStore) path(loc models.Locator) string {
	dir := util.SafeJoin(filepath.FromSlash(s.root), loc.DocumentID)
	return util.SafeJoin(dir, loc.Filename)
}

func (s *LocalStore) Put(ctx context.Context, documentID, filename, contentType string, data []byte) (models.Locator, error) {
	_ = ctx
	_ = contentType
	loc := models.Locator{Scheme: fileScheme, Bucket: s.root, DocumentID: documentID, Filename: filename}
	p := s.path(loc)
	if _, err := os.Stat(p); err == nil {
		return models.Locator{}, fmt.Errorf("%w: object %s already exists", models.ErrConflict, loc)
	}
	if _, err := util.WriteFileAtomic(p, bytes.NewReader(data)); err != nil {
		return models.Locator{}, fmt.Errorf("%w: write %s: %v", models.ErrStorage, loc, err)
	}
	return loc, nil
}

func (s *LocalStore) Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error) {
	_ = ctx
	if err := s.owns(loc); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(loc))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: object %s", models.ErrNotFound, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrStorage, loc, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, loc models.Locator) error {
	_ = ctx
	if err := s.owns(loc); err != nil {
		return err
	}
	p := s.path(loc)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", models.ErrStorage, loc, err)
	}
	_ = os.Remove(filepath.Dir(p))
	return nil
}

func (s *LocalStore) owns(loc models.Locator) error {
	if loc.Scheme != fileScheme || loc.Bucket != s.root {
		return fmt.Errorf("%w: locator %s is outside %s", models.ErrValidation, loc, s.root)
	}
	return nil
}
