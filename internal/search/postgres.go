package search

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"thedump/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema/postgres.sql
var postgresSchema string

const fragmentDelimiter = "|~|"

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresIndex searches a weighted tsvector (filename A, content B)
// ranked with ts_rank_cd.
type PostgresIndex struct {
	q  Queryer
	hl Highlight
}

func NewPostgresIndex(q Queryer, hl Highlight) *PostgresIndex {
	return &PostgresIndex{q: q, hl: hl.orDefault()}
}

func (p *PostgresIndex) Migrate(ctx context.Context) error {
	if _, err := p.q.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres search schema: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Index(ctx context.Context, documentID, filename, text string) error {
	_, err := p.q.Exec(ctx, `
INSERT INTO search_documents (document_id, filename, content)
VALUES ($1, $2, $3)
ON CONFLICT (document_id) DO UPDATE
SET filename = EXCLUDED.filename,
    content = EXCLUDED.content,
    indexed_at = now()`, documentID, filename, text)
	if err != nil {
		return fmt.Errorf("%w: upsert search document: %v", models.ErrIndex, err)
	}
	return nil
}

func (p *PostgresIndex) Delete(ctx context.Context, documentID string) error {
	if _, err := p.q.Exec(ctx, `DELETE FROM search_documents WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%w: delete search document: %v", models.ErrIndex, err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if len(queryTerms(query)) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.q.Query(ctx, `
WITH q AS (SELECT websearch_to_tsquery('english', $1) AS query)
SELECT d.document_id::text, d.filename,
       ts_rank_cd(d.tsv, q.query) AS score,
       ts_headline('english', d.content, q.query, $3) AS headline
FROM search_documents d, q
WHERE d.tsv @@ q.query
ORDER BY score DESC
LIMIT $2`, query, limit, p.headlineOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: query search documents: %v", models.ErrIndex, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			h        Hit
			score    float32
			headline string
		)
		if err := rows.Scan(&h.DocumentID, &h.Filename, &score, &headline); err != nil {
			return nil, fmt.Errorf("%w: scan search hit: %v", models.ErrIndex, err)
		}
		h.Score = float64(score)
		h.Fragments = keepMarked(strings.Split(headline, fragmentDelimiter), p.hl)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate search rows: %v", models.ErrIndex, err)
	}
	return hits, nil
}

func (p *PostgresIndex) headlineOptions() string {
	quote := func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
	return fmt.Sprintf("StartSel=%s, StopSel=%s, MaxFragments=%d, MaxWords=24, MinWords=8, FragmentDelimiter=%s",
		quote(p.hl.Pre), quote(p.hl.Post), maxFragments, quote(fragmentDelimiter))
}
