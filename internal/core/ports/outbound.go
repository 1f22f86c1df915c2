package ports

import (
	"context"
	"time"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// Embedder builds a vector for the embedding target of a request.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex performs nearest-neighbor search over indexed chunks.
// Result ordering is provider-defined and treated as arbitrary.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error)
}

// TextGenerator produces text for rewrite and HyDE synthesis prompts.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
}

// RerankResult maps a submitted document index to its reranker score.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker delegates candidate ordering to an external reranking service.
// Callers fall back to the prior ordering when it errors.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// MetadataStore batch-fetches authoritative per-document metadata.
type MetadataStore interface {
	FetchByIDs(ctx context.Context, ids []string) (map[string]domain.DocumentMeta, error)
}

// PageResolver maps a raw page identifier to its canonical URL.
// Unknown ids resolve to the empty string without error.
type PageResolver interface {
	Resolve(ctx context.Context, rawID string) (string, error)
}

// SettingsProvider supplies the immutable configuration snapshot for
// one pipeline run.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (domain.RetrievalSettings, error)
}

// TraceSpan is one span-shaped telemetry record.
type TraceSpan struct {
	Name      string         `json:"name"`
	RequestID string         `json:"request_id"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
}

// TraceSink accepts telemetry records. Implementations must never block
// the pipeline and must swallow their own errors; a nil sink is valid.
type TraceSink interface {
	Emit(span TraceSpan)
}

// Cache is a read-through cache for metadata and page lookups.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// TokenCounter estimates the token cost of a piece of content. When nil,
// assembly falls back to the chars-per-token estimate.
type TokenCounter func(content string) int
