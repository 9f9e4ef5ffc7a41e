package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	fragmentRadius = 60
	maxFragments   = 3
	filenameBoost  = 2.0
)

type token struct {
	start, end int
	lower      string
}

type memoryEntry struct {
	filename string
	text     string
	tokens   []token
	nameTerm map[string]bool
}

// MemoryIndex is an in-process index: term frequency scoring over the
// text with a boost for filename terms.
type MemoryIndex struct {
	mu      sync.RWMutex
	hl      Highlight
	entries map[string]memoryEntry
}

func NewMemoryIndex(hl Highlight) *MemoryIndex {
	return &MemoryIndex{hl: hl.orDefault(), entries: map[string]memoryEntry{}}
}

func (m *MemoryIndex) Index(ctx context.Context, documentID, filename, text string) error {
	_ = ctx
	e := memoryEntry{filename: filename, text: text, tokens: tokenize(text), nameTerm: map[string]bool{}}
	for _, t := range queryTerms(filename) {
		e.nameTerm[t] = true
	}
	m.mu.Lock()
	m.entries[documentID] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, documentID string) error {
	_ = ctx
	m.mu.Lock()
	delete(m.entries, documentID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	_ = ctx
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}
	want := map[string]bool{}
	for _, t := range terms {
		want[t] = true
	}

	m.mu.RLock()
	hits := make([]Hit, 0)
	for id, e := range m.entries {
		freq := map[string]int{}
		var matched []token
		for _, tok := range e.tokens {
			if want[tok.lower] {
				freq[tok.lower]++
				matched = append(matched, tok)
			}
		}
		var score float64
		for _, t := range terms {
			if n := freq[t]; n > 0 {
				score += 1 + math.Log(float64(n))
			}
			if e.nameTerm[t] {
				score += filenameBoost
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{
			DocumentID: id,
			Filename:   e.filename,
			Score:      score,
			Fragments:  keepMarked(fragments(e.text, matched, m.hl), m.hl),
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func tokenize(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if isSeparator(r) {
			if start >= 0 {
				out = append(out, token{start: start, end: i, lower: strings.ToLower(text[start:i])})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{start: start, end: len(text), lower: strings.ToLower(text[start:])})
	}
	return out
}

// fragments cuts windows around the first matches, merges overlapping
// windows and wraps every matched token inside them.
func fragments(text string, matched []token, hl Highlight) []string {
	type window struct{ start, end int }
	var windows []window
	for _, tok := range matched {
		w := window{start: tok.start - fragmentRadius, end: tok.end + fragmentRadius}
		if w.start < 0 {
			w.start = 0
		}
		if w.end > len(text) {
			w.end = len(text)
		}
		for w.start > 0 && !utf8.RuneStart(text[w.start]) {
			w.start--
		}
		for w.end < len(text) && !utf8.RuneStart(text[w.end]) {
			w.end++
		}
		if n := len(windows); n > 0 && w.start <= windows[n-1].end {
			windows[n-1].end = w.end
			continue
		}
		if len(windows) == maxFragments {
			break
		}
		windows = append(windows, w)
	}

	out := make([]string, 0, len(windows))
	for _, w := range windows {
		var b strings.Builder
		pos := w.start
		for _, tok := range matched {
			if tok.start < w.start || tok.end > w.end {
				continue
			}
			b.WriteString(text[pos:tok.start])
			b.WriteString(hl.Pre)
			b.WriteString(text[tok.start:tok.end])
			b.WriteString(hl.Post)
			pos = tok.end
		}
		b.WriteString(text[pos:w.end])
		out = append(out, strings.Join(strings.Fields(b.String()), " "))
	}
	return out
}
