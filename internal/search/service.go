package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"thedump/internal/metrics"
	"thedump/internal/models"
	"thedump/internal/storage"
)

// Service answers search queries. Hits are joined with the status store
// and only COMPLETED documents are returned.
type Service struct {
	index Index
	store storage.StatusStore
	limit int
}

func NewService(index Index, store storage.StatusStore, limit int) *Service {
	if limit <= 0 {
		limit = 20
	}
	return &Service{index: index, store: store, limit: limit}
}

type rankedResult struct {
	result      models.SearchResult
	completedAt time.Time
}

func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}
	metrics.Searches.Inc()

	hits, err := s.index.Search(ctx, query, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return []models.SearchResult{}, nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.DocumentID)
	}
	docs, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search documents: %w", err)
	}

	ranked := make([]rankedResult, 0, len(hits))
	for _, h := range hits {
		doc, ok := docs[h.DocumentID]
		if !ok || doc.Status != models.StatusCompleted {
			slog.Debug("dropping search hit", "documentId", h.DocumentID, "found", ok, "status", doc.Status)
			continue
		}
		highlight := h.Fragments
		if highlight == nil {
			highlight = []string{}
		}
		ranked = append(ranked, rankedResult{
			result: models.SearchResult{
				DocumentID:     doc.DocumentID,
				Filename:       doc.Filename,
				RelevanceScore: h.Score,
				Highlight:      highlight,
				StorageURI:     doc.StorageURI,
				Status:         doc.Status,
			},
			completedAt: doc.UpdatedAt,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].result.RelevanceScore != ranked[j].result.RelevanceScore {
			return ranked[i].result.RelevanceScore > ranked[j].result.RelevanceScore
		}
		return ranked[i].completedAt.After(ranked[j].completedAt)
	})

	out := make([]models.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.result)
	}
	return out, nil
}
