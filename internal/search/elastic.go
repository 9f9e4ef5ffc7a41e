package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"thedump/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const elasticMapping = `{
  "mappings": {
    "properties": {
      "document_id": {"type": "keyword"},
      "filename":    {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "content":     {"type": "text"},
      "indexed_at":  {"type": "date"}
    }
  }
}`

type elasticDocument struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	IndexedAt  time.Time `json:"indexed_at"`
}

type elasticSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    elasticDocument     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticIndex stores one Elasticsearch document per document id, so
// re-indexing overwrites.
type ElasticIndex struct {
	es    *elasticsearch.Client
	index string
	hl    Highlight
}

func NewElasticIndex(addresses []string, index string, hl Highlight) (*ElasticIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticIndex{es: es, index: index, hl: hl.orDefault()}, nil
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: check index %s: %v", models.ErrIndex, e.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(strings.NewReader(elasticMapping)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: create index %s: %v", models.ErrIndex, e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return fmt.Errorf("%w: create index %s: %s", models.ErrIndex, e.index, res.Status())
	}
	return nil
}

func (e *ElasticIndex) Index(ctx context.Context, documentID, filename, text string) error {
	body, err := json.Marshal(elasticDocument{DocumentID: documentID, Filename: filename, Content: text, IndexedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", models.ErrIndex, err)
	}
	res, err := e.es.Index(e.index, bytes.NewReader(body),
		e.es.Index.WithDocumentID(documentID),
		e.es.Index.WithContext(ctx),
	)
	if err != nil {
		return models.Transient(fmt.Errorf("%w: index document %s: %v", models.ErrIndex, documentID, err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseErr(res, "index document "+documentID)
	}
	return nil
}

func (e *ElasticIndex) Delete(ctx context.Context, documentID string) error {
	res, err := e.es.Delete(e.index, documentID, e.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", models.ErrIndex, documentID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseErr(res, "delete document "+documentID)
	}
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if len(queryTerms(query)) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	q := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"content", "filename^2"},
				"fuzziness": "AUTO",
			},
		},
		"highlight": map[string]any{
			"pre_tags":  []string{e.hl.Pre},
			"post_tags": []string{e.hl.Post},
			"fields": map[string]any{
				"content": map[string]any{"fragment_size": 150, "number_of_fragments": maxFragments},
			},
		},
		"_source": []string{"document_id", "filename"},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", models.ErrIndex, err)
	}
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", models.ErrIndex, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseErr(res, "search")
	}

	var parsed elasticSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", models.ErrIndex, err)
	}
	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		id := h.Source.DocumentID
		if id == "" {
			id = h.ID
		}
		hits = append(hits, Hit{
			DocumentID: id,
			Filename:   h.Source.Filename,
			Score:      h.Score,
			Fragments:  keepMarked(h.Highlight["content"], e.hl),
		})
	}
	return hits, nil
}

func responseErr(res *esapi.Response, op string) error {
	err := fmt.Errorf("%w: %s: %s: %s", models.ErrIndex, op, res.Status(), readBody(res))
	switch res.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return models.Transient(err)
	}
	return err
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return strings.TrimSpace(string(b))
}
