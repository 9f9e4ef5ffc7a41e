package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"thedump/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeElastic struct {
	mu       sync.Mutex
	docs     map[string]elasticDocument
	created  bool
	lastBody map[string]any
	status   int
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":"overloaded"}`)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodHead && len(parts) == 1:
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && len(parts) == 1:
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "_doc":
		var d elasticDocument
		_ = json.NewDecoder(r.Body).Decode(&d)
		f.docs[parts[2]] = d
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case r.Method == http.MethodDelete && len(parts) == 3:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.docs, parts[2])
		_, _ = io.WriteString(w, `{"result":"deleted"}`)
	case len(parts) == 2 && parts[1] == "_search":
		f.lastBody = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
		_, _ = io.WriteString(w, `{"hits":{"hits":[
{"_id":"doc-1","_score":2.5,"_source":{"document_id":"doc-1","filename":"receipt.png"},"highlight":{"content":["<em>Total</em>: $42","no marker here"]}},
{"_id":"doc-2","_score":0.7,"_source":{"document_id":"doc-2","filename":"total.pdf"}}
]}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newFakeElastic(t *testing.T) (*fakeElastic, *ElasticIndex) {
	t.Helper()
	fake := &fakeElastic{docs: map[string]elasticDocument{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	idx, err := NewElasticIndex([]string{srv.URL}, "the_dump_documents", Highlight{})
	require.NoError(t, err)
	return fake, idx
}

func TestElasticIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	fake, idx := newFakeElastic(t)

	require.NoError(t, idx.EnsureIndex(ctx))
	require.True(t, fake.created)
	require.NoError(t, idx.EnsureIndex(ctx))

	require.NoError(t, idx.Index(ctx, "doc-1", "receipt.png", "Total: $42"))
	require.NoError(t, idx.Index(ctx, "doc-1", "receipt.png", "Total: $42"))
	require.Len(t, fake.docs, 1)
	require.Equal(t, "Total: $42", fake.docs["doc-1"].Content)

	require.NoError(t, idx.Delete(ctx, "doc-1"))
	require.NoError(t, idx.Delete(ctx, "doc-1"))
	require.Empty(t, fake.docs)
}

func TestElasticIndexSearch(t *testing.T) {
	ctx := context.Background()
	fake, idx := newFakeElastic(t)

	hits, err := idx.Search(ctx, "total", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "doc-1", hits[0].DocumentID)
	require.Equal(t, 2.5, hits[0].Score)
	require.Equal(t, []string{"<em>Total</em>: $42"}, hits[0].Fragments)
	require.Empty(t, hits[1].Fragments)

	require.EqualValues(t, 5, fake.lastBody["size"])
	mm := fake.lastBody["query"].(map[string]any)["multi_match"].(map[string]any)
	require.Equal(t, "AUTO", mm["fuzziness"])
	require.Equal(t, "total", mm["query"])
}

func TestElasticOverloadIsTransient(t *testing.T) {
	fake, idx := newFakeElastic(t)
	fake.status = http.StatusTooManyRequests

	err := idx.Index(context.Background(), "doc-1", "a.png", "text")
	require.ErrorIs(t, err, models.ErrIndex)
	require.True(t, models.Retryable(err))
}
