package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"thedump/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteDocumentColumns = `document_id, filename, COALESCE(content_type,''), size_bytes, COALESCE(checksum,''),
       gcs_uri, status, COALESCE(extracted_text,''), COALESCE(error_message,''), COALESCE(retry_of,''),
       created_at, updated_at`

// OpenSQLite opens (and creates) a SQLite database file. ":memory:" is
// accepted for tests; the pool is pinned to one connection in that case so
// every statement sees the same database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return db, nil
}

// SQLiteStore is the single-node status store used for local development.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite documents schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetClock(now func() time.Time) { s.now = now }

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(sqliteTimeLayout)
}

func (s *SQLiteStore) Create(ctx context.Context, d models.Document) error {
	now := s.stamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (document_id, filename, content_type, size_bytes, checksum, gcs_uri, status, retry_of, created_at, updated_at)
VALUES (?, ?, NULLIF(?,''), ?, NULLIF(?,''), ?, ?, NULLIF(?,''), ?, ?)`,
		d.DocumentID, d.Filename, d.ContentType, d.SizeBytes, d.Checksum, d.StorageURI, string(d.Status), d.RetryOf, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: document %s already exists", models.ErrConflict, d.DocumentID)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, documentID string) (models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents WHERE document_id=?`, documentID)
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, documentIDs []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(documentIDs))
	for _, id := range documentIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents WHERE document_id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents by ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document by id: %w", err)
		}
		out[d.DocumentID] = d
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Transition(ctx context.Context, documentID string, from, to models.Status, upd models.Update) (models.Document, error) {
	if err := models.CheckTransition(from, to); err != nil {
		return models.Document{}, err
	}
	var text any
	if upd.ExtractedText != nil {
		text = *upd.ExtractedText
	}
	row := s.db.QueryRowContext(ctx, `
UPDATE documents
SET status=?, extracted_text=COALESCE(?, extracted_text), error_message=NULLIF(?,''), updated_at=?
WHERE document_id=? AND status=?
RETURNING `+sqliteDocumentColumns,
		string(to), text, upd.ErrorMessage, s.stamp(), documentID, string(from),
	)
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.Get(ctx, documentID)
		if getErr != nil {
			return models.Document{}, getErr
		}
		return models.Document{}, fmt.Errorf("%w: document %s is %s, expected %s", models.ErrConflict, documentID, current.Status, from)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("update document status: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses []models.Status, updatedBefore time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	if len(statuses) == 0 {
		return []models.Document{}, nil
	}
	args := make([]any, 0, len(statuses)+2)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, updatedBefore.UTC().Format(sqliteTimeLayout), limit)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sqliteDocumentColumns+`
FROM documents
WHERE status IN (`+placeholders(len(statuses))+`) AND updated_at < ?
ORDER BY updated_at ASC
LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents by status: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (models.Document, error) {
	var (
		d                    models.Document
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&d.DocumentID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Checksum,
		&d.StorageURI, &status, &d.ExtractedText, &d.ErrorMessage, &d.RetryOf, &createdAt, &updatedAt)
	if err != nil {
		return models.Document{}, err
	}
	d.Status = models.Status(status)
	if d.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return models.Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return models.Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return d, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
