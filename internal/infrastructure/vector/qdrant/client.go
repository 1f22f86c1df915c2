package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// Client is a read-only search client over one qdrant collection.
// Indexing is owned by the ingestion service, not by this one.
type Client struct {
	baseURL        string
	collection     string
	scoreThreshold float64
	httpClient     *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithScoreThreshold makes the search drop hits below the given
// similarity on the server side. Zero disables the filter.
func (c *Client) WithScoreThreshold(threshold float64) *Client {
	c.scoreThreshold = threshold
	return c
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("qdrant search: empty query vector")
	}
	if limit <= 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if c.scoreThreshold > 0 {
		reqBody["score_threshold"] = c.scoreThreshold
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			ChunkText:     chunkText(r.Payload),
			RawSimilarity: r.Score,
			Payload:       domain.CanonicalizeChunkPayload(r.Payload),
		})
	}
	return out, nil
}

// chunkText reads the chunk body out of the raw payload. Legacy points
// used a few different keys for it.
func chunkText(payload map[string]any) string {
	for _, key := range []string{"text", "chunk_text", "content", "page_content"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
