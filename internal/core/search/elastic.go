// Package search is a minimal REST client to Elasticsearch. Documents are
// keyed by the same id as their vector record so hybrid search can merge
// scores by id.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/models"
)

type ElasticClient struct {
	url      string
	index    string
	username string
	password string
	client   *http.Client
}

type Config struct {
	URL      string
	Index    string
	Username string
	Password string
	Timeout  time.Duration
}

func NewElasticClient(cfg Config) *ElasticClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ElasticClient{
		url:      cfg.URL,
		index:    cfg.Index,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

var _ core.SearchClient = (*ElasticClient)(nil)

// EnsureIndex creates the index with mappings if it does not exist.
func (c *ElasticClient) EnsureIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("%s/%s", c.url, c.index), nil)
	if err != nil {
		return err
	}
	c.auth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"file_id":      map[string]any{"type": "keyword"},
				"chunk_index":  map[string]any{"type": "integer"},
				"filename":     map[string]any{"type": "keyword"},
				"content_type": map[string]any{"type": "keyword"},
				"text": map[string]any{
					"type":     "text",
					"analyzer": "standard",
				},
				"source": map[string]any{"type": "keyword"},
				"active": map[string]any{"type": "boolean"},
			},
		},
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/%s", c.url, c.index), mapping, nil)
}

// Index writes one document under the given id, overwriting any previous
// version.
func (c *ElasticClient) Index(ctx context.Context, id string, doc models.Metadata) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/%s/_doc/%s", c.url, c.index, id), doc, nil)
}

// Search runs a match query over text with optional exact-match term filters.
// An empty query matches all documents, which the status toggle uses to probe
// for a file's entries.
func (c *ElasticClient) Search(ctx context.Context, query string, limit int, filters map[string]any) ([]core.KeywordHit, error) {
	if limit <= 0 {
		limit = 5
	}

	boolQuery := map[string]any{}
	if query != "" {
		boolQuery["must"] = []any{
			map[string]any{"match": map[string]any{"text": query}},
		}
	} else {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	}
	if len(filters) > 0 {
		var filterList []any
		for key, value := range filters {
			filterList = append(filterList, termCondition(key, value))
		}
		boolQuery["filter"] = filterList
	}

	esQuery := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  limit,
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source models.Metadata `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_search", c.url, c.index), esQuery, &resp); err != nil {
		return nil, err
	}

	hits := make([]core.KeywordHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		source := h.Source
		if source == nil {
			source = models.Metadata{}
		}
		hits = append(hits, core.KeywordHit{ID: h.ID, Score: h.Score, Source: source})
	}
	return hits, nil
}

// termCondition builds the filter clause for one key. An array value becomes
// a terms disjunction across that key; keys remain conjunctive.
func termCondition(key string, value any) map[string]any {
	switch v := value.(type) {
	case []string:
		return map[string]any{"terms": map[string]any{key: v}}
	case []any:
		return map[string]any{"terms": map[string]any{key: v}}
	default:
		return map[string]any{"term": map[string]any{key: value}}
	}
}

// DeleteByFileID removes every indexed chunk of the given file.
func (c *ElasticClient) DeleteByFileID(ctx context.Context, fileID string) error {
	query := map[string]any{
		"query": map[string]any{"term": map[string]any{"file_id": fileID}},
	}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_delete_by_query", c.url, c.index), query, nil)
}

// SetActiveByFileID flips the active flag on every indexed chunk of the file
// via a scripted update-by-query.
func (c *ElasticClient) SetActiveByFileID(ctx context.Context, fileID string, active bool) error {
	body := map[string]any{
		"script": map[string]any{
			"source": "ctx._source.active = params.active",
			"params": map[string]any{"active": active},
		},
		"query": map[string]any{"term": map[string]any{"file_id": fileID}},
	}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_update_by_query", c.url, c.index), body, nil)
}

func (c *ElasticClient) auth(req *http.Request) {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

func (c *ElasticClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal es request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
