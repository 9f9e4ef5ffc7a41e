package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thedump/internal/models"

	"github.com/stretchr/testify/require"
)

type clockedStore interface {
	StatusStore
	SetClock(func() time.Time)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	s := NewSQLiteStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storeBackends(t *testing.T) map[string]func() clockedStore {
	return map[string]func() clockedStore{
		"memory": func() clockedStore { return NewMemoryStore() },
		"sqlite": func() clockedStore { return newSQLiteTestStore(t) },
	}
}

func pendingDoc(id string) models.Document {
	return models.Document{
		DocumentID:  id,
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		StorageURI:  "gs://dump-raw/" + id + "/invoice.pdf",
		Status:      models.StatusPending,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
			s.SetClock(clock.Now)

			require.NoError(t, s.Create(ctx, pendingDoc("doc-1")))
			got, err := s.Get(ctx, "doc-1")
			require.NoError(t, err)
			require.Equal(t, models.StatusPending, got.Status)
			require.Equal(t, "invoice.pdf", got.Filename)
			require.Equal(t, "gs://dump-raw/doc-1/invoice.pdf", got.StorageURI)
			require.True(t, got.CreatedAt.Equal(clock.Now()))
			require.True(t, got.UpdatedAt.Equal(got.CreatedAt))

			err = s.Create(ctx, pendingDoc("doc-1"))
			require.ErrorIs(t, err, models.ErrConflict)

			_, err = s.Get(ctx, "missing")
			require.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestStoreTransitionIsCompareAndSet(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			require.NoError(t, s.Create(ctx, pendingDoc("doc-2")))

			doc, err := s.Transition(ctx, "doc-2", models.StatusPending, models.StatusOCRInProgress, models.Update{})
			require.NoError(t, err)
			require.Equal(t, models.StatusOCRInProgress, doc.Status)

			_, err = s.Transition(ctx, "doc-2", models.StatusPending, models.StatusOCRInProgress, models.Update{})
			require.ErrorIs(t, err, models.ErrConflict)

			text := "Total: $42"
			doc, err = s.Transition(ctx, "doc-2", models.StatusOCRInProgress, models.StatusIndexingInProgress, models.Update{ExtractedText: &text})
			require.NoError(t, err)
			require.Equal(t, text, doc.ExtractedText)

			_, err = s.Transition(ctx, "doc-2", models.StatusIndexingInProgress, models.StatusPending, models.Update{})
			require.ErrorIs(t, err, models.ErrConflict)

			doc, err = s.Transition(ctx, "doc-2", models.StatusIndexingInProgress, models.StatusCompleted, models.Update{})
			require.NoError(t, err)
			require.Equal(t, text, doc.ExtractedText)

			got, err := s.Get(ctx, "doc-2")
			require.NoError(t, err)
			require.Equal(t, models.StatusCompleted, got.Status)
			require.Equal(t, text, got.ExtractedText)

			_, err = s.Transition(ctx, "missing", models.StatusPending, models.StatusOCRInProgress, models.Update{})
			require.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestStoreFailureKeepsMessage(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			require.NoError(t, s.Create(ctx, pendingDoc("doc-3")))
			_, err := s.Transition(ctx, "doc-3", models.StatusPending, models.StatusOCRInProgress, models.Update{})
			require.NoError(t, err)
			_, err = s.Transition(ctx, "doc-3", models.StatusOCRInProgress, models.StatusFailed, models.Update{ErrorMessage: "corrupt image"})
			require.NoError(t, err)

			got, err := s.Get(ctx, "doc-3")
			require.NoError(t, err)
			require.Equal(t, models.StatusFailed, got.Status)
			require.Equal(t, "corrupt image", got.ErrorMessage)

			_, err = s.Transition(ctx, "doc-3", models.StatusFailed, models.StatusPending, models.Update{})
			require.ErrorIs(t, err, models.ErrConflict)
		})
	}
}

func TestStoreConcurrentClaimHasOneWinner(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			require.NoError(t, s.Create(ctx, pendingDoc("doc-4")))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.Transition(ctx, "doc-4", models.StatusPending, models.StatusOCRInProgress, models.Update{}); err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			require.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestStoreListByStatusAndGetMany(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
			s.SetClock(clock.Now)

			require.NoError(t, s.Create(ctx, pendingDoc("old")))
			clock.Advance(time.Minute)
			require.NoError(t, s.Create(ctx, pendingDoc("stuck")))
			_, err := s.Transition(ctx, "stuck", models.StatusPending, models.StatusOCRInProgress, models.Update{})
			require.NoError(t, err)
			clock.Advance(time.Hour)
			require.NoError(t, s.Create(ctx, pendingDoc("fresh")))

			cutoff := clock.Now().Add(-30 * time.Minute)
			docs, err := s.ListByStatus(ctx, models.NonTerminal(), cutoff, 10)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			require.Equal(t, "old", docs[0].DocumentID)
			require.Equal(t, "stuck", docs[1].DocumentID)

			docs, err = s.ListByStatus(ctx, []models.Status{models.StatusOCRInProgress}, clock.Now().Add(time.Second), 10)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			require.Equal(t, "stuck", docs[0].DocumentID)

			docs, err = s.ListByStatus(ctx, models.NonTerminal(), clock.Now().Add(time.Second), 1)
			require.NoError(t, err)
			require.Len(t, docs, 1)

			many, err := s.GetMany(ctx, []string{"old", "fresh", "missing"})
			require.NoError(t, err)
			require.Len(t, many, 2)
			require.Contains(t, many, "old")
			require.Contains(t, many, "fresh")

			many, err = s.GetMany(ctx, nil)
			require.NoError(t, err)
			require.Empty(t, many)
		})
	}
}
