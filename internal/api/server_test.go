package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thedump/internal/extract"
	"thedump/internal/ingest"
	"thedump/internal/models"
	"thedump/internal/objectstore"
	"thedump/internal/pipeline"
	"thedump/internal/search"
	"thedump/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type queue struct{ ids []string }

func (q *queue) Enqueue(_ context.Context, id string) error {
	q.ids = append(q.ids, id)
	return nil
}

type fixture struct {
	store  *storage.MemoryStore
	queue  *queue
	runner *pipeline.Runner
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	objects, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	index := search.NewMemoryIndex(search.Highlight{})
	stages := pipeline.NewStages(store, extract.NewChainFrom(objects, extract.NewMockExtractor()), index)
	q := &queue{}
	s := NewServer(ingest.NewService(objects, store, q, 64), store, search.NewService(index, store, 10))
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &fixture{
		store:  store,
		queue:  q,
		runner: pipeline.NewRunner(stages, pipeline.RetryPolicy{MaxAttempts: 1}, time.Minute),
		srv:    srv,
	}
}

func (f *fixture) upload(t *testing.T, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	resp, err := http.Post(f.srv.URL+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUploadStatusAndSearch(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, "invoice.txt", []byte("Invoice for consulting services"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[ingest.Receipt](t, resp)
	require.True(t, receipt.Accepted)
	require.Equal(t, []string{receipt.DocumentID}, f.queue.ids)

	status := decode[models.Document](t, get(t, f.srv.URL+"/status/"+receipt.DocumentID))
	require.Equal(t, models.StatusPending, status.Status)
	require.Equal(t, "invoice.txt", status.Filename)

	results := decode[[]models.SearchResult](t, get(t, f.srv.URL+"/search?q=consulting"))
	require.Empty(t, results)

	final, err := f.runner.Process(context.Background(), receipt.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, final)

	results = decode[[]models.SearchResult](t, get(t, f.srv.URL+"/search?q=consulting"))
	require.Len(t, results, 1)
	require.Equal(t, receipt.DocumentID, results[0].DocumentID)
	require.Equal(t, models.StatusCompleted, results[0].Status)
	require.NotEmpty(t, results[0].Highlight)
	require.Contains(t, results[0].Highlight[0], "<em>consulting</em>")
}

func TestEmptySearchReturnsEmptyList(t *testing.T) {
	f := newFixture(t)
	resp := get(t, f.srv.URL+"/search?q=%20%20")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, decode[[]models.SearchResult](t, resp))
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, "empty.pdf", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.Equal(t, "TD-API-4001", body["code"])
	require.Contains(t, body["detail"], "empty")

	resp = f.upload(t, "big.pdf", bytes.Repeat([]byte("x"), 65))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "TD-API-4013", decode[map[string]string](t, resp)["code"])

	resp, err := http.Post(f.srv.URL+"/upload", "text/plain", bytes.NewBufferString("not a form"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, f.queue.ids)
}

func TestStatusErrors(t *testing.T) {
	f := newFixture(t)

	resp := get(t, f.srv.URL+"/status/not-a-uuid")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, f.srv.URL+"/status/"+uuid.NewString())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "TD-API-4004", decode[map[string]string](t, resp)["code"])

	resp, err := http.Post(f.srv.URL+"/status/"+uuid.NewString(), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRetryFailedDocument(t *testing.T) {
	f := newFixture(t)
	receipt := decode[ingest.Receipt](t, f.upload(t, "scan.png", []byte("scan")))

	resp, err := http.Post(f.srv.URL+"/documents/"+receipt.DocumentID+"/retry", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = f.store.Transition(context.Background(), receipt.DocumentID, models.StatusPending, models.StatusFailed, models.Update{ErrorMessage: "blurry"})
	require.NoError(t, err)

	resp2, err := http.Post(f.srv.URL+"/documents/"+receipt.DocumentID+"/retry", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusCreated, resp2.StatusCode)
	out := decode[map[string]string](t, resp2)
	require.Equal(t, receipt.DocumentID, out["retry_of"])
	require.NotEqual(t, receipt.DocumentID, out["document_id"])

	retried, err := f.store.Get(context.Background(), out["document_id"])
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, retried.Status)
	require.Equal(t, receipt.DocumentID, retried.RetryOf)

	original, err := f.store.Get(context.Background(), receipt.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, original.Status)
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)
	resp := get(t, f.srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, f.srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusForMapsSentinels(t *testing.T) {
	require.Equal(t, http.StatusRequestEntityTooLarge, statusFor(ingest.ErrTooLarge))
	require.Equal(t, http.StatusBadRequest, statusFor(models.ErrValidation))
	require.Equal(t, http.StatusNotFound, statusFor(models.ErrNotFound))
	require.Equal(t, http.StatusConflict, statusFor(models.ErrConflict))
	require.Equal(t, http.StatusBadGateway, statusFor(models.ErrStorage))
	require.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
