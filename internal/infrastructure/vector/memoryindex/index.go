package memoryindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// Index is an in-process vector index over cosine similarity. It backs
// local development and tests where no qdrant instance is running.
type Index struct {
	mu     sync.RWMutex
	points []point
}

type point struct {
	vector    []float32
	candidate domain.Candidate
}

func New() *Index {
	return &Index{}
}

// Add stores one chunk with its embedding. The raw payload map is
// canonicalized the same way the qdrant client does it.
func (x *Index) Add(vector []float32, chunkText string, payload map[string]any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.points = append(x.points, point{
		vector: vector,
		candidate: domain.Candidate{
			ChunkText: chunkText,
			Payload:   domain.CanonicalizeChunkPayload(payload),
		},
	})
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}

func (x *Index) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(queryVector) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scored := make([]domain.Candidate, 0, len(x.points))
	for _, p := range x.points {
		c := p.candidate
		c.RawSimilarity = cosine(queryVector, p.vector)
		scored = append(scored, c)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RawSimilarity > scored[j].RawSimilarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
