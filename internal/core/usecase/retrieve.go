package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

const (
	metaCacheTTL = 5 * time.Minute
	pageCacheTTL = 15 * time.Minute
)

// Retriever embeds the enhancement target, searches the vector index,
// attaches authoritative metadata and computes metadata-derived weights.
// Embedding and search failures are fatal to the request.
type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	metadata ports.MetadataStore
	pages    ports.PageResolver
	cache    ports.Cache
}

func NewRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	metadata ports.MetadataStore,
	pages ports.PageResolver,
	cache ports.Cache,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		metadata: metadata,
		pages:    pages,
		cache:    cache,
	}
}

func (r *Retriever) Retrieve(
	ctx context.Context,
	enhanced domain.EnhancedQuery,
	plan domain.KPlan,
	settings domain.RetrievalSettings,
) ([]domain.EnrichedCandidate, []float32, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, enhanced.EmbeddingTarget())
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}

	hits, err := r.index.Search(ctx, queryVector, plan.RetrieveK)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector search", err)
	}

	enriched, err := r.enrich(ctx, hits, settings)
	if err != nil {
		return nil, nil, err
	}
	return enriched, queryVector, nil
}

func (r *Retriever) enrich(
	ctx context.Context,
	hits []domain.Candidate,
	settings domain.RetrievalSettings,
) ([]domain.EnrichedCandidate, error) {
	ids := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		id := hit.Payload.DocID
		if id == "" {
			id = hit.Payload.PageID
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	metaByID, err := r.fetchMetadata(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EnrichedCandidate, 0, len(hits))
	for i, hit := range hits {
		docID := hit.Payload.DocID
		if docID == "" {
			docID = hit.Payload.PageID
		}

		candidate := domain.EnrichedCandidate{
			Candidate:      hit,
			DocID:          docID,
			Title:          hit.Payload.Title,
			SourceURL:      hit.Payload.SourceURL,
			RetrievalOrder: i,
		}

		if docID != "" {
			meta, ok := metaByID[docID]
			if !ok || !meta.Visible {
				// Unknown or hidden documents are dropped here.
				continue
			}
			if meta.Title != "" {
				candidate.Title = meta.Title
			}
			if meta.SourceURL != "" {
				candidate.SourceURL = meta.SourceURL
			}
			candidate.DocType = meta.DocType
			candidate.PersonaType = meta.PersonaType
		}

		if candidate.SourceURL == "" && hit.Payload.PageID != "" {
			candidate.SourceURL = r.resolvePage(ctx, hit.Payload.PageID)
		}

		candidate.MetadataWeight = metadataWeight(settings, candidate.DocType, candidate.PersonaType)
		candidate.FinalScore = hit.RawSimilarity * candidate.MetadataWeight
		out = append(out, candidate)
	}
	return out, nil
}

// fetchMetadata serves as much as possible from the cache and fetches
// the rest in a single batch round trip.
func (r *Retriever) fetchMetadata(ctx context.Context, ids []string) (map[string]domain.DocumentMeta, error) {
	out := make(map[string]domain.DocumentMeta, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.cache != nil {
			if v, ok := r.cache.Get("meta:" + id); ok {
				if meta, ok := v.(domain.DocumentMeta); ok {
					out[id] = meta
					continue
				}
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := r.metadata.FetchByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("fetch document metadata: %w", err)
	}
	for id, meta := range fetched {
		out[id] = meta
		if r.cache != nil {
			r.cache.Set("meta:"+id, meta, metaCacheTTL)
		}
	}
	return out, nil
}

func (r *Retriever) resolvePage(ctx context.Context, pageID string) string {
	if r.cache != nil {
		if v, ok := r.cache.Get("page:" + pageID); ok {
			if url, ok := v.(string); ok {
				return url
			}
		}
	}
	if r.pages == nil {
		return ""
	}
	url, err := r.pages.Resolve(ctx, pageID)
	if err != nil {
		slog.Warn("page_resolve_failed", "page_id", pageID, "error", err)
		return ""
	}
	if r.cache != nil {
		r.cache.Set("page:"+pageID, url, pageCacheTTL)
	}
	return url
}

// metadataWeight multiplies the doc-type and persona-type table weights.
// Missing types count as 1.0. An explicitly configured zero survives the
// clamp: it zeroes the score while the candidate still occupies quota.
func metadataWeight(settings domain.RetrievalSettings, docType, personaType string) float64 {
	weight := lookupWeight(settings.DocTypeWeights, docType) * lookupWeight(settings.PersonaTypeWeights, personaType)
	if weight == 0 {
		return 0
	}
	if weight < domain.WeightFloor {
		return domain.WeightFloor
	}
	if weight > domain.WeightCeil {
		return domain.WeightCeil
	}
	return weight
}

func lookupWeight(table map[string]float64, key string) float64 {
	if key == "" || len(table) == 0 {
		return 1.0
	}
	if weight, ok := table[key]; ok {
		return weight
	}
	return 1.0
}
