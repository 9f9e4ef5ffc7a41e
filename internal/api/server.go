package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"thedump/internal/ingest"
	"thedump/internal/models"
	"thedump/internal/search"
	"thedump/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead is allowed on top of max_upload_bytes for the form
// boundaries and headers.
const multipartOverhead = 1 << 20

type Server struct {
	ingest   *ingest.Service
	store    storage.StatusStore
	searcher *search.Service
}

func NewServer(ing *ingest.Service, store storage.StatusStore, searcher *search.Service) *Server {
	return &Server{ingest: ing, store: store, searcher: searcher}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.Handle("/metrics", promhttp.Handler())
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.ingest.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, ingest.ErrTooLarge)
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: parse multipart: %v", models.ErrValidation, err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: multipart field \"file\" is required", models.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.ingest.MaxBytes()+1))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: read upload: %v", models.ErrValidation, err))
		return
	}
	receipt, err := s.ingest.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id, err := documentID(strings.TrimPrefix(r.URL.Path, "/status/"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	results, err := s.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "retry" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("%w: route %s", models.ErrNotFound, r.URL.Path))
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id, err := documentID(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.ingest.Resubmit(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document_id": receipt.DocumentID, "retry_of": receipt.RetryOf})
}

func documentID(raw string) (string, error) {
	raw = strings.Trim(raw, "/")
	if _, err := uuid.Parse(raw); err != nil || strings.Contains(raw, "/") {
		return "", fmt.Errorf("%w: malformed document id %q", models.ErrValidation, raw)
	}
	return strings.ToLower(raw), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrStorage), errors.Is(err, models.ErrIndex):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	if code >= 500 {
		slog.Error("Request failed.", "status", code, "code", apiErr.Code, "error", err)
	}
	writeJSON(w, code, map[string]any{
		"detail": apiErr.Detail,
		"code":   apiErr.Code,
	})
}

type apiError struct {
	Code   string
	Detail string
}

func toAPIError(status int, err error) apiError {
	switch {
	case status == http.StatusBadGateway:
		return apiError{Code: "TD-API-5020", Detail: "Storage backend unavailable. Retry shortly."}
	case status >= 500:
		return apiError{Code: "TD-API-5000", Detail: "Internal server error. Please retry or check service logs."}
	}

	detail := "Request failed."
	code := "TD-API-4000"
	switch status {
	case http.StatusBadRequest:
		code = "TD-API-4001"
	case http.StatusNotFound:
		code = "TD-API-4004"
		detail = "Requested resource was not found."
	case http.StatusMethodNotAllowed:
		code = "TD-API-4005"
		detail = "This endpoint does not support the requested method."
	case http.StatusConflict:
		code = "TD-API-4009"
		detail = "Operation conflicts with current state. Retry after checking status."
	case http.StatusRequestEntityTooLarge:
		code = "TD-API-4013"
	}

	// 4xx errors carry our own validation messages, safe to show.
	if (status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge) && err != nil {
		detail = err.Error()
	}
	return apiError{Code: code, Detail: detail}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
