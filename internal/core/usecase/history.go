package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// assembleHistory budget-walks conversation turns most recent first and
// emits them in chronological order. When the full history exceeds the
// summary trigger and summarization is enabled, turns older than the
// recent window collapse into one synthetic summary turn.
func (a *WindowAssembler) assembleHistory(
	history []domain.ConversationTurn,
	settings domain.RetrievalSettings,
	result *domain.ContextWindowResult,
) {
	turns := history
	kinds := make([]string, len(history))
	for i := range kinds {
		kinds[i] = domain.WindowItemHistory
	}

	if settings.SummaryEnabled && len(history) > settings.SummaryMaxTurns {
		total := 0
		for _, turn := range history {
			total += a.estimateTokens(turn.Content, settings.CharsPerToken)
		}
		if total > settings.SummaryTriggerTokens {
			older := history[:len(history)-settings.SummaryMaxTurns]
			recent := history[len(history)-settings.SummaryMaxTurns:]
			summary := domain.ConversationTurn{
				Role:    "system",
				Content: summarizeTurns(older, settings.SummaryMaxChars),
			}
			turns = append([]domain.ConversationTurn{summary}, recent...)
			kinds = make([]string, len(turns))
			kinds[0] = domain.WindowItemSummary
			for i := 1; i < len(kinds); i++ {
				kinds[i] = domain.WindowItemHistory
			}
			result.Selection.SummaryCreated = true
			result.Selection.HistoryTrimmed += len(older)
		}
	}

	// Walk newest to oldest so the most recent turn survives whenever
	// the budget allows, then restore chronological order.
	included := make([]domain.WindowItem, 0, len(turns))
	budgetOpen := true
	for i := len(turns) - 1; i >= 0; i-- {
		clipped := clipContent(turns[i].Content, settings.HistoryClipChars)
		tokens := a.estimateTokens(clipped, settings.CharsPerToken)
		item := domain.WindowItem{
			Kind:    kinds[i],
			Content: clipped,
			Tokens:  tokens,
			Turn:    &domain.ConversationTurn{Role: turns[i].Role, Content: clipped},
		}
		if !budgetOpen || result.HistoryTokens+tokens > settings.HistoryTokenBudget {
			budgetOpen = false
			result.Selection.HistoryTrimmed++
			result.Trimmed = append(result.Trimmed, item)
			continue
		}
		result.HistoryTokens += tokens
		included = append(included, item)
	}

	for i := len(included) - 1; i >= 0; i-- {
		result.Included = append(result.Included, included[i])
	}
	result.Selection.HistoryIncluded = len(included)
}

// summarizeTurns builds the synthetic summary deterministically from the
// replaced turns; no model call, so reruns reproduce it bit for bit.
func summarizeTurns(turns []domain.ConversationTurn, maxChars int) string {
	var b strings.Builder
	b.WriteString("Earlier conversation: ")
	for i, turn := range turns {
		if i > 0 {
			b.WriteString(" | ")
		}
		snippet := strings.TrimSpace(turn.Content)
		if len([]rune(snippet)) > 120 {
			snippet = string([]rune(snippet)[:120])
		}
		fmt.Fprintf(&b, "%s: %s", turn.Role, snippet)
	}
	return clipContent(b.String(), maxChars)
}
