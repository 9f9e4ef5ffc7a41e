package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryIndexHighlightsMatches(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(Highlight{})
	require.NoError(t, idx.Index(ctx, "doc-1", "invoice.pdf", "ACME Corp\nTotal: $42\nThank you"))

	hits, err := idx.Search(ctx, "total", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "doc-1", hits[0].DocumentID)
	require.Greater(t, hits[0].Score, 0.0)
	require.NotEmpty(t, hits[0].Fragments)
	require.Contains(t, hits[0].Fragments[0], "<em>Total</em>")
}

func TestMemoryIndexFilenameOnlyMatchHasNoFragments(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(Highlight{Pre: "[", Post: "]"})
	require.NoError(t, idx.Index(ctx, "doc-1", "invoice.pdf", "ACME Corp paid in full"))

	hits, err := idx.Search(ctx, "invoice", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Empty(t, hits[0].Fragments)
}

func TestMemoryIndexUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(Highlight{})
	require.NoError(t, idx.Index(ctx, "doc-1", "a.png", "first draft"))
	require.NoError(t, idx.Index(ctx, "doc-1", "a.png", "second draft"))

	hits, err := idx.Search(ctx, "draft", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = idx.Search(ctx, "first", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	require.NoError(t, idx.Delete(ctx, "doc-1"))
	hits, err = idx.Search(ctx, "draft", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestMemoryIndexRanksByFrequency(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(Highlight{})
	require.NoError(t, idx.Index(ctx, "once", "a.txt", "refund requested"))
	require.NoError(t, idx.Index(ctx, "thrice", "b.txt", "refund refund refund"))

	hits, err := idx.Search(ctx, "refund", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "thrice", hits[0].DocumentID)
}

func TestFragmentsRespectRuneBoundaries(t *testing.T) {
	text := "ééééééééééééééééééééééééééééééééééééé total ééééééééééééééééééééééééééééééééééé"
	frags := fragments(text, []token{{start: len("ééééééééééééééééééééééééééééééééééééé "), end: len("ééééééééééééééééééééééééééééééééééééé total"), lower: "total"}}, Highlight{Pre: "<em>", Post: "</em>"})
	require.Len(t, frags, 1)
	require.Contains(t, frags[0], "<em>total</em>")
	for _, r := range frags[0] {
		require.NotEqual(t, '�', r)
	}
}

func TestFTSQueryQuotesTerms(t *testing.T) {
	require.Equal(t, `"total" OR "42"`, ftsQuery("Total: $42"))
	require.Equal(t, "", ftsQuery(`"*"`))
	require.Equal(t, `"near" OR "x"`, ftsQuery("NEAR(x)"))
}
