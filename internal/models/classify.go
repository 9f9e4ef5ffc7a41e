package models

import (
	"context"
	"errors"
	"strings"
)

type ErrorClass string

const (
	ErrorTransient ErrorClass = "transient"
	ErrorRate      ErrorClass = "rate"
	ErrorTimeout   ErrorClass = "timeout"
	ErrorPermanent ErrorClass = "permanent"
)

type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying regardless of its message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// ClassifyError decides whether a stage failure may be retried. Explicit
// markers win over message matching.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var te transientError
	switch {
	case errors.As(err, &te):
		return ErrorTransient
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrNoExtractableText),
		errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return ErrorPermanent
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrorTimeout
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "rate"), strings.Contains(e, "429"), strings.Contains(e, "quota"):
		return ErrorRate
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection reset"), strings.Contains(e, "connection refused"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

func Retryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorTransient, ErrorRate, ErrorTimeout:
		return true
	}
	return false
}
