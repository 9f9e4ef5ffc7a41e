package search

import (
	"context"
	"testing"

	"thedump/internal/storage"

	"github.com/stretchr/testify/require"
)

func newSQLiteTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	idx := NewSQLiteIndex(db, Highlight{})
	require.NoError(t, idx.Migrate(context.Background()))
	return idx
}

func TestSQLiteIndexSearch(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteTestIndex(t)
	require.NoError(t, idx.Index(ctx, "doc-1", "invoice.pdf", "ACME Corp. Total: $42. Payment received."))
	require.NoError(t, idx.Index(ctx, "doc-2", "letter.png", "Dear customer, your order shipped."))

	hits, err := idx.Search(ctx, "total", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "doc-1", hits[0].DocumentID)
	require.Equal(t, "invoice.pdf", hits[0].Filename)
	require.Greater(t, hits[0].Score, 0.0)
	require.Len(t, hits[0].Fragments, 1)
	require.Contains(t, hits[0].Fragments[0], "<em>Total</em>")

	hits, err = idx.Search(ctx, "shipping", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "porter stemming matches shipped")
	require.Equal(t, "doc-2", hits[0].DocumentID)

	hits, err = idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSQLiteIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteTestIndex(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, idx.Index(ctx, "doc-1", "invoice.pdf", "Total: $42"))
	}
	hits, err := idx.Search(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, idx.Delete(ctx, "doc-1"))
	hits, err = idx.Search(ctx, "42", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSQLiteIndexCommonTermScoresPositive(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteTestIndex(t)
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		require.NoError(t, idx.Index(ctx, id, id+".png", "receipt for order "+id))
	}

	hits, err := idx.Search(ctx, "receipt", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, h := range hits {
		require.Greater(t, h.Score, 0.0, h.DocumentID)
	}
}
