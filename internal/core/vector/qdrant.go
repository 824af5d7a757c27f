// Package vector is a minimal REST client to Qdrant. It assumes cosine
// distance and creates the collection if missing.
package vector

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

type QdrantClient struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantClient(cfg Config) *QdrantClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantClient{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

var _ core.VectorClient = (*QdrantClient)(nil)

// EnsureCollection creates the collection if it does not exist. Qdrant
// returns 200 for an existing collection with the same schema.
func (c *QdrantClient) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return c.putJSON(ctx, fmt.Sprintf("%s/collections/%s", c.url, c.collection), body, nil)
}

func (c *QdrantClient) Upsert(ctx context.Context, points []core.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, len(points))
	for i, p := range points {
		payload[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": payload}
	return c.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", c.url, c.collection), body, nil)
}

func (c *QdrantClient) Search(ctx context.Context, vec []float32, limit int, filter map[string]any) ([]core.VectorHit, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      any             `json:"id"`
			Score   float64         `json:"score"`
			Payload models.Metadata `json:"payload"`
		} `json:"result"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", c.url, c.collection), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]core.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := r.Payload
		if payload == nil {
			payload = models.Metadata{}
		}
		hits = append(hits, core.VectorHit{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: payload,
		})
	}
	return hits, nil
}

func (c *QdrantClient) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	f := buildFilter(filter)
	if f == nil {
		return fmt.Errorf("refusing to delete with empty filter")
	}
	body := map[string]any{"filter": f}
	return c.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.url, c.collection), body, nil)
}

func (c *QdrantClient) SetPayloadByFilter(ctx context.Context, filter map[string]any, payload models.Metadata) error {
	f := buildFilter(filter)
	if f == nil {
		return fmt.Errorf("refusing to update payload with empty filter")
	}
	body := map[string]any{
		"payload": payload,
		"filter":  f,
	}
	return c.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/payload?wait=true", c.url, c.collection), body, nil)
}

// buildFilter turns exact-match conditions into a Qdrant must-filter. An
// array value under a key becomes a match-any, i.e. a disjunction across that
// key only; keys remain conjunctive.
func buildFilter(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		var match map[string]any
		switch v := value.(type) {
		case []string:
			match = map[string]any{"any": v}
		case []any:
			match = map[string]any{"any": v}
		default:
			match = map[string]any{"value": v}
		}
		must = append(must, map[string]any{"key": key, "match": match})
	}
	return map[string]any{"must": must}
}

func (c *QdrantClient) putJSON(ctx context.Context, url string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, url, body, out)
}

func (c *QdrantClient) postJSON(ctx context.Context, url string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, url, body, out)
}

func (c *QdrantClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal qdrant request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
