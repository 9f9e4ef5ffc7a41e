package search

import (
	"context"
	"strings"
	"unicode"
)

// Hit is one match returned by an index, before status enrichment.
type Hit struct {
	DocumentID string
	Filename   string
	Score      float64
	Fragments  []string
}

// Index is the searchable side of a completed document. Index is an
// idempotent upsert keyed by document id.
type Index interface {
	Index(ctx context.Context, documentID, filename, text string) error
	Delete(ctx context.Context, documentID string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Highlight holds the markers wrapped around matched terms in fragments.
type Highlight struct {
	Pre  string
	Post string
}

func (h Highlight) orDefault() Highlight {
	if h.Pre == "" && h.Post == "" {
		return Highlight{Pre: "<em>", Post: "</em>"}
	}
	return h
}

// keepMarked drops fragments that carry no highlighted term.
func keepMarked(fragments []string, h Highlight) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f != "" && strings.Contains(f, h.Pre) {
			out = append(out, f)
		}
	}
	return out
}

// queryTerms lowercases the query and splits it into letter/digit runs.
// Duplicates are removed; order is kept.
func queryTerms(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range strings.FieldsFunc(strings.ToLower(query), isSeparator) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
