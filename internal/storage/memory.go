package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"thedump/internal/models"
)

type memoryEntry struct {
	mu  sync.Mutex
	doc models.Document
}

// MemoryStore keeps records in process. Each record has its own lock so
// transitions on different documents never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*memoryEntry{}, now: time.Now}
}

// SetClock replaces the time source used for created/updated timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Create(ctx context.Context, doc models.Document) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[doc.DocumentID]; ok {
		return fmt.Errorf("%w: document %s already exists", models.ErrConflict, doc.DocumentID)
	}
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt
	s.entries[doc.DocumentID] = &memoryEntry{doc: doc}
	return nil
}

func (s *MemoryStore) entry(id string) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *MemoryStore) Get(ctx context.Context, documentID string) (models.Document, error) {
	_ = ctx
	e, ok := s.entry(documentID)
	if !ok {
		return models.Document{}, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc, nil
}

func (s *MemoryStore) GetMany(ctx context.Context, documentIDs []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out[id] = doc
	}
	return out, nil
}

func (s *MemoryStore) Transition(ctx context.Context, documentID string, from, to models.Status, upd models.Update) (models.Document, error) {
	_ = ctx
	if err := models.CheckTransition(from, to); err != nil {
		return models.Document{}, err
	}
	e, ok := s.entry(documentID)
	if !ok {
		return models.Document{}, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc.Status != from {
		return models.Document{}, fmt.Errorf("%w: document %s is %s, expected %s", models.ErrConflict, documentID, e.doc.Status, from)
	}
	applyUpdate(&e.doc, to, upd, s.now().UTC())
	return e.doc, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, statuses []models.Status, updatedBefore time.Time, limit int) ([]models.Document, error) {
	_ = ctx
	want := map[models.Status]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.Document, 0)
	for _, e := range entries {
		e.mu.Lock()
		doc := e.doc
		e.mu.Unlock()
		if want[doc.Status] && doc.UpdatedAt.Before(updatedBefore) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
