package models

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrStorage    = errors.New("storage error")
	ErrExtraction = errors.New("extraction error")
	ErrIndex      = errors.New("index error")
	ErrTimeout    = errors.New("timeout")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoExtractableText = errors.New("no extractable text")
)

type taggedError struct {
	kind error
	err  error
}

func (e taggedError) Error() string   { return e.err.Error() }
func (e taggedError) Unwrap() []error { return []error{e.kind, e.err} }

// Tag makes err match kind under errors.Is without changing its message.
// Failure messages stored on documents are the extractor's own text.
func Tag(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return taggedError{kind: kind, err: err}
}
