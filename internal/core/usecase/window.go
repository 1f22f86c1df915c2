package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

// WindowAssembler dedupes, quota-limits and token-budgets the ranked
// candidates and, under a separate budget, the conversation history.
type WindowAssembler struct {
	counter ports.TokenCounter
}

func NewWindowAssembler(counter ports.TokenCounter) *WindowAssembler {
	return &WindowAssembler{counter: counter}
}

func (a *WindowAssembler) Assemble(
	ranked []domain.RankedCandidate,
	history []domain.ConversationTurn,
	settings domain.RetrievalSettings,
	diversityRanked bool,
) domain.ContextWindowResult {
	result := domain.ContextWindowResult{
		Included: make([]domain.WindowItem, 0, len(ranked)+len(history)),
		Trimmed:  make([]domain.WindowItem, 0),
		Selection: domain.SelectionStats{
			CandidatesIn:    len(ranked),
			DiversityRanked: diversityRanked,
			HistoryIn:       len(history),
		},
	}

	a.assembleChunks(ranked, settings, &result)
	a.assembleHistory(history, settings, &result)
	return result
}

func (a *WindowAssembler) assembleChunks(
	ranked []domain.RankedCandidate,
	settings domain.RetrievalSettings,
	result *domain.ContextWindowResult,
) {
	ordered := make([]domain.RankedCandidate, len(ranked))
	copy(ordered, ranked)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FinalScore != ordered[j].FinalScore {
			return ordered[i].FinalScore > ordered[j].FinalScore
		}
		return ordered[i].RetrievalOrder < ordered[j].RetrievalOrder
	})

	// Dedupe exact repeats and enforce the per-document excerpt quota.
	// Walking in score order keeps the highest-scoring occurrences.
	type docState struct {
		kept   int
		chunks map[int]struct{}
	}
	perDoc := make(map[string]*docState)
	survivors := make([]domain.RankedCandidate, 0, len(ordered))
	for i, candidate := range ordered {
		key := chunkDocKey(candidate.EnrichedCandidate, i)
		state, ok := perDoc[key]
		if !ok {
			state = &docState{chunks: make(map[int]struct{})}
			perDoc[key] = state
		}
		if candidate.Payload.ChunkIndex >= 0 {
			if _, dup := state.chunks[candidate.Payload.ChunkIndex]; dup {
				result.Selection.DroppedByDedupe++
				result.Trimmed = append(result.Trimmed, chunkItem(candidate, 0))
				continue
			}
			state.chunks[candidate.Payload.ChunkIndex] = struct{}{}
		}
		if state.kept >= settings.ExcerptQuotaPerDoc {
			result.Selection.DroppedByQuota++
			result.Trimmed = append(result.Trimmed, chunkItem(candidate, 0))
			continue
		}
		state.kept++
		survivors = append(survivors, candidate)
	}
	result.Selection.AfterDedupe = len(survivors)

	// Budget walk: the item that would overflow ends the walk; nothing
	// after it is admitted.
	budgetOpen := true
	for _, candidate := range survivors {
		clipped := clipContent(candidate.ChunkText, settings.ContextClipChars)
		tokens := a.estimateTokens(clipped, settings.CharsPerToken)
		if !budgetOpen || result.ContextTokens+tokens > settings.ContextTokenBudget {
			budgetOpen = false
			result.Selection.DroppedByBudget++
			result.Trimmed = append(result.Trimmed, chunkItem(candidate, tokens))
			continue
		}
		candidate.ChunkText = clipped
		result.ContextTokens += tokens
		result.Included = append(result.Included, chunkItem(candidate, tokens))
	}
}

func chunkItem(candidate domain.RankedCandidate, tokens int) domain.WindowItem {
	c := candidate
	return domain.WindowItem{
		Kind:    domain.WindowItemChunk,
		Content: c.ChunkText,
		Tokens:  tokens,
		Chunk:   &c,
	}
}

// chunkDocKey falls back from document id to source URL to a synthetic
// per-position key so identity-less chunks never collide.
func chunkDocKey(candidate domain.EnrichedCandidate, position int) string {
	if candidate.DocID != "" {
		return candidate.DocID
	}
	if candidate.SourceURL != "" {
		return normalizeURLKey(candidate.SourceURL)
	}
	return fmt.Sprintf("chunk-%d", position)
}

func clipContent(content string, maxChars int) string {
	if maxChars <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars])
}

// estimateTokens uses the injected counter when present, otherwise a
// rounded-up chars-per-token estimate. Non-empty content always costs
// at least one token.
func (a *WindowAssembler) estimateTokens(content string, charsPerToken int) int {
	if content == "" {
		return 0
	}
	if a.counter != nil {
		return a.counter(content)
	}
	if charsPerToken < 1 {
		charsPerToken = 1
	}
	return (len([]rune(content)) + charsPerToken - 1) / charsPerToken
}
