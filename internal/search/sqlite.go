package search

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"thedump/internal/models"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// minSQLiteScore keeps terms found in nearly every document, whose bm25 is
// close to zero, at a positive relevance.
const minSQLiteScore = 1e-6

// SQLiteIndex uses an FTS5 table. Scores are negated bm25 values so that
// larger means more relevant.
type SQLiteIndex struct {
	db *sql.DB
	hl Highlight
}

func NewSQLiteIndex(db *sql.DB, hl Highlight) *SQLiteIndex {
	return &SQLiteIndex{db: db, hl: hl.orDefault()}
}

func (s *SQLiteIndex) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite search schema: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Index(ctx context.Context, documentID, filename, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin index tx: %v", models.ErrIndex, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_documents WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: clear indexed document: %v", models.ErrIndex, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO search_documents (document_id, filename, content) VALUES (?, ?, ?)`, documentID, filename, text); err != nil {
		return fmt.Errorf("%w: insert indexed document: %v", models.ErrIndex, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit index tx: %v", models.ErrIndex, err)
	}
	return nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM search_documents WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: delete indexed document: %v", models.ErrIndex, err)
	}
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, filename,
       -bm25(search_documents, 0.0, 2.0, 1.0) AS score,
       snippet(search_documents, 2, ?, ?, '...', 24)
FROM search_documents
WHERE search_documents MATCH ?
ORDER BY score DESC
LIMIT ?`, s.hl.Pre, s.hl.Post, match, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query fts: %v", models.ErrIndex, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			h       Hit
			snippet string
		)
		if err := rows.Scan(&h.DocumentID, &h.Filename, &h.Score, &snippet); err != nil {
			return nil, fmt.Errorf("%w: scan fts hit: %v", models.ErrIndex, err)
		}
		if h.Score < minSQLiteScore {
			h.Score = minSQLiteScore
		}
		h.Fragments = keepMarked([]string{snippet}, s.hl)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fts hits: %v", models.ErrIndex, err)
	}
	return hits, nil
}

// ftsQuery quotes every term so user input never reaches the FTS5 query
// grammar. Terms are OR-ed, like a match query.
func ftsQuery(query string) string {
	terms := queryTerms(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
