package models

import (
	"fmt"
	"path"
	"strings"
)

// Locator addresses a stored raw file as scheme://bucket/document_id/filename.
type Locator struct {
	Scheme     string
	Bucket     string
	DocumentID string
	Filename   string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s://%s/%s/%s", l.Scheme, l.Bucket, l.DocumentID, l.Filename)
}

// ObjectName is the path of the object inside its bucket.
func (l Locator) ObjectName() string {
	return l.DocumentID + "/" + l.Filename
}

func (l Locator) Ext() string {
	return strings.ToLower(path.Ext(l.Filename))
}

func ParseLocator(raw string) (Locator, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return Locator{}, fmt.Errorf("%w: locator %q has no scheme", ErrValidation, raw)
	}
	// The bucket of a file:// locator is an absolute directory, so split from
	// the right: the last two segments are always document_id/filename.
	rest = strings.TrimSuffix(rest, "/")
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		return Locator{}, fmt.Errorf("%w: locator %q is malformed", ErrValidation, raw)
	}
	filename := rest[i+1:]
	rest = rest[:i]
	j := strings.LastIndex(rest, "/")
	if j <= 0 {
		return Locator{}, fmt.Errorf("%w: locator %q is malformed", ErrValidation, raw)
	}
	loc := Locator{Scheme: scheme, Bucket: rest[:j], DocumentID: rest[j+1:], Filename: filename}
	if loc.Bucket == "" || loc.DocumentID == "" || loc.Filename == "" {
		return Locator{}, fmt.Errorf("%w: locator %q is malformed", ErrValidation, raw)
	}
	return loc, nil
}
