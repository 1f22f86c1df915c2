package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

// Ranker reorders and truncates the enriched pool. Modes: none (score
// order), mmr (diversity-aware local selection), remote (external
// reranking service). Unknown modes fail closed to none; a failing
// remote call degrades to none.
type Ranker struct {
	reranker ports.Reranker
}

func NewRanker(reranker ports.Reranker) *Ranker {
	return &Ranker{reranker: reranker}
}

// resolveRankerMode picks the request's mode over the configured default
// and folds anything unrecognized into none.
func resolveRankerMode(requested, configured string) string {
	mode := strings.ToLower(strings.TrimSpace(requested))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(configured))
	}
	switch mode {
	case domain.RankerModeNone, domain.RankerModeMMR, domain.RankerModeRemote:
		return mode
	case "":
		return domain.RankerModeNone
	default:
		slog.Warn("unknown_ranker_mode", "mode", mode)
		return domain.RankerModeNone
	}
}

// Rank returns at most the plan's rerank width (final width when
// reranking is disabled) and reports whether diversity selection ran.
func (r *Ranker) Rank(
	ctx context.Context,
	mode string,
	query string,
	candidates []domain.EnrichedCandidate,
	plan domain.KPlan,
	lambda float64,
) ([]domain.RankedCandidate, bool) {
	width := plan.FinalK
	if plan.RerankEnabled {
		width = plan.RerankK
	}

	switch mode {
	case domain.RankerModeMMR:
		return rankMMR(candidates, width, lambda), true
	case domain.RankerModeRemote:
		if r.reranker == nil {
			return rankByScore(candidates, width), false
		}
		ranked, err := r.rankRemote(ctx, query, candidates, width)
		if err != nil {
			slog.Warn("remote_rerank_failed", "error", err)
			return rankByScore(candidates, width), false
		}
		return ranked, false
	default:
		return rankByScore(candidates, width), false
	}
}

// rankByScore orders by final score descending with the original
// retrieval order as tie-break, then truncates.
func rankByScore(candidates []domain.EnrichedCandidate, width int) []domain.RankedCandidate {
	ordered := make([]domain.EnrichedCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FinalScore != ordered[j].FinalScore {
			return ordered[i].FinalScore > ordered[j].FinalScore
		}
		return ordered[i].RetrievalOrder < ordered[j].RetrievalOrder
	})
	return assignRanks(truncateCandidates(ordered, width))
}

// rankMMR selects iteratively: relevance is the min-max normalized final
// score, novelty penalizes token overlap with already selected chunks.
// Final scores are reordered, never recomputed.
func rankMMR(candidates []domain.EnrichedCandidate, width int, lambda float64) []domain.RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if width <= 0 || width > len(candidates) {
		width = len(candidates)
	}

	minScore := candidates[0].FinalScore
	maxScore := candidates[0].FinalScore
	for _, c := range candidates[1:] {
		if c.FinalScore < minScore {
			minScore = c.FinalScore
		}
		if c.FinalScore > maxScore {
			maxScore = c.FinalScore
		}
	}
	scoreRange := maxScore - minScore
	relevance := func(c domain.EnrichedCandidate) float64 {
		if scoreRange <= 0 {
			if c.FinalScore > 0 {
				return 1
			}
			return 0
		}
		return (c.FinalScore - minScore) / scoreRange
	}

	tokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		tokens[i] = toTokenSet(c.ChunkText)
	}

	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	selected := make([]domain.EnrichedCandidate, 0, width)
	selectedTokens := make([]map[string]struct{}, 0, width)
	for len(selected) < width && len(remaining) > 0 {
		bestPos := 0
		bestScore := -1.0
		for pos, idx := range remaining {
			novelty := 0.0
			for _, picked := range selectedTokens {
				if overlap := tokenOverlap(tokens[idx], picked); overlap > novelty {
					novelty = overlap
				}
			}
			mmr := lambda*relevance(candidates[idx]) - (1-lambda)*novelty
			if mmr > bestScore {
				bestScore = mmr
				bestPos = pos
			}
		}
		idx := remaining[bestPos]
		selected = append(selected, candidates[idx])
		selectedTokens = append(selectedTokens, tokens[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return assignRanks(selected)
}

// rankRemote delegates ordering; the service score overwrites the
// candidate's final score.
func (r *Ranker) rankRemote(
	ctx context.Context,
	query string,
	candidates []domain.EnrichedCandidate,
	width int,
) ([]domain.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.ChunkText
	}

	results, err := r.reranker.Rerank(ctx, query, documents, width)
	if err != nil {
		return nil, err
	}

	ordered := make([]domain.EnrichedCandidate, 0, len(results))
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(candidates) {
			continue
		}
		c := candidates[result.Index]
		c.FinalScore = result.Score
		ordered = append(ordered, c)
	}
	return assignRanks(truncateCandidates(ordered, width)), nil
}

func truncateCandidates(candidates []domain.EnrichedCandidate, width int) []domain.EnrichedCandidate {
	if width <= 0 || len(candidates) <= width {
		return candidates
	}
	return candidates[:width]
}

func assignRanks(candidates []domain.EnrichedCandidate) []domain.RankedCandidate {
	out := make([]domain.RankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = domain.RankedCandidate{EnrichedCandidate: c, Rank: i + 1}
	}
	return out
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
