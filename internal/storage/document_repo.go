package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"thedump/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const documentColumns = `document_id::text, filename, COALESCE(content_type,''), size_bytes, COALESCE(checksum,''),
       gcs_uri, status, COALESCE(extracted_text,''), COALESCE(error_message,''), COALESCE(retry_of::text,''),
       created_at, updated_at`

// DocumentRepo is the Postgres status store.
type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, filename, content_type, size_bytes, checksum, gcs_uri, status, retry_of)
VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), $6, $7, NULLIF($8,'')::uuid)`,
		d.DocumentID, d.Filename, d.ContentType, d.SizeBytes, d.Checksum, d.StorageURI, string(d.Status), d.RetryOf,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: document %s already exists", models.ErrConflict, d.DocumentID)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, documentID string) (models.Document, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id=$1`, documentID)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) GetMany(ctx context.Context, documentIDs []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id::text = ANY($1)`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents by ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document by id: %w", err)
		}
		out[d.DocumentID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents by ids: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) Transition(ctx context.Context, documentID string, from, to models.Status, upd models.Update) (models.Document, error) {
	if err := models.CheckTransition(from, to); err != nil {
		return models.Document{}, err
	}
	row := r.db.Pool.QueryRow(ctx, `
UPDATE documents
SET status=$3,
    extracted_text=COALESCE($4, extracted_text),
    error_message=NULLIF($5,''),
    updated_at=NOW()
WHERE document_id=$1 AND status=$2
RETURNING `+documentColumns,
		documentID, string(from), string(to), upd.ExtractedText, upd.ErrorMessage,
	)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := r.Get(ctx, documentID)
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

func (r *DocumentRepo) ListByStatus(ctx context.Context, statuses []models.Status, updatedBefore time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE status = ANY($1) AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3`, statusStrings(statuses), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents by status: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) Close() error {
	r.db.Close()
	return nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var (
		d      models.Document
		status string
	)
	err := row.Scan(&d.DocumentID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Checksum,
		&d.StorageURI, &status, &d.ExtractedText, &d.ErrorMessage, &d.RetryOf, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, err
	}
	d.Status = models.Status(status)
	return d, nil
}
