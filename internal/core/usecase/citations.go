package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// aggregateCitations groups the window's chunk items back into
// document-level citation records with scores normalized against the
// top document. Recomputed per request, never persisted.
func aggregateCitations(window domain.ContextWindowResult, settings domain.RetrievalSettings) domain.CitationPayload {
	chunks := window.IncludedChunks()
	if len(chunks) == 0 {
		return domain.CitationPayload{
			Citations: []domain.CitationDocScore{},
			Meta:      domain.CitationMeta{Message: domain.NoCitationsMessage},
		}
	}

	type group struct {
		doc     domain.CitationDocScore
		simSum  float64
		ordered int
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(chunks))

	for i, item := range chunks {
		chunk := item.Chunk
		key := chunkDocKey(chunk.EnrichedCandidate, i)
		g, ok := groups[key]
		if !ok {
			g = &group{
				doc: domain.CitationDocScore{
					DocID:        chunk.DocID,
					Title:        chunk.Title,
					URL:          chunk.SourceURL,
					DocType:      chunk.DocType,
					PersonaType:  chunk.PersonaType,
					Weight:       chunk.MetadataWeight,
					ChunkIndices: make([]int, 0, 2),
					Chunks:       make([]domain.ChunkDetail, 0, 2),
				},
			}
			groups[key] = g
			order = append(order, key)
		}

		similarity := chunk.RawSimilarity
		g.simSum += similarity
		if similarity > g.doc.SimilarityMax {
			g.doc.SimilarityMax = similarity
			g.doc.Weight = chunk.MetadataWeight
		}
		g.doc.ExcerptCount++

		index := chunk.Payload.ChunkIndex
		if index < 0 {
			index = i
		}
		g.doc.ChunkIndices = append(g.doc.ChunkIndices, index)
		g.doc.Chunks = append(g.doc.Chunks, domain.ChunkDetail{
			Index:      index,
			Snippet:    snippet(item.Content, settings.SnippetMaxChars),
			Similarity: similarity,
		})
	}

	citations := make([]domain.CitationDocScore, 0, len(groups))
	highest := 0.0
	for _, key := range order {
		g := groups[key]
		g.doc.SimilarityAvg = g.simSum / float64(g.doc.ExcerptCount)
		g.doc.FinalScore = g.doc.SimilarityMax * g.doc.Weight
		if g.doc.FinalScore > highest {
			highest = g.doc.FinalScore
		}
		citations = append(citations, g.doc)
	}

	for i := range citations {
		if highest <= 0 {
			citations[i].NormalizedScore = 0
			continue
		}
		citations[i].NormalizedScore = int(math.Round(citations[i].FinalScore / highest * 100))
	}

	sort.SliceStable(citations, func(i, j int) bool {
		if citations[i].FinalScore != citations[j].FinalScore {
			return citations[i].FinalScore > citations[j].FinalScore
		}
		return citations[i].SimilarityMax > citations[j].SimilarityMax
	})

	return domain.CitationPayload{
		Citations: citations,
		Meta: domain.CitationMeta{
			TopKChunks: len(chunks),
			UniqueDocs: len(citations),
			Message:    fmt.Sprintf("Grouped %d context chunks into %d cited documents.", len(chunks), len(citations)),
		},
	}
}

func snippet(content string, maxChars int) string {
	runes := []rune(strings.TrimSpace(content))
	if maxChars <= 0 || len(runes) <= maxChars {
		return string(runes)
	}
	return string(runes[:maxChars]) + "…"
}

// normalizeURLKey strips scheme, trailing slashes and fragments so URL
// variants of the same page group together.
func normalizeURLKey(url string) string {
	key := strings.ToLower(strings.TrimSpace(url))
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	key = strings.TrimPrefix(key, "www.")
	if i := strings.IndexAny(key, "#"); i >= 0 {
		key = key[:i]
	}
	return strings.TrimRight(key, "/")
}
