package usecase

import (
	"strings"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// classifyIntent is a pure keyword match: no model call, deterministic,
// case-insensitive. Command keywords win over chitchat keywords.
func classifyIntent(message string, settings domain.RetrievalSettings) domain.GuardrailDecision {
	lower := strings.ToLower(message)

	if matchesKeyword(lower, settings.CommandKeywords) {
		return domain.GuardrailDecision{
			Intent:              domain.IntentCommand,
			ReasonCode:          "command_keyword",
			FallbackInstruction: settings.CommandInstruction,
		}
	}
	if matchesKeyword(lower, settings.ChitchatKeywords) {
		return domain.GuardrailDecision{
			Intent:              domain.IntentChitchat,
			ReasonCode:          "chitchat_keyword",
			FallbackInstruction: settings.ChitchatInstruction,
		}
	}
	return domain.GuardrailDecision{
		Intent:     domain.IntentRetrieval,
		ReasonCode: "no_keyword_match",
	}
}

func matchesKeyword(lowerMessage string, keywords []string) bool {
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lowerMessage, keyword) {
			return true
		}
	}
	return false
}

// assessEvidence fills the decision's numeric context from the assembled
// window. An empty candidate pool is not an error; it surfaces here as
// the insufficient-evidence flag.
func assessEvidence(decision domain.GuardrailDecision, window domain.ContextWindowResult, threshold float64) domain.GuardrailDecision {
	top := 0.0
	included := 0
	for _, item := range window.Included {
		if item.Kind != domain.WindowItemChunk {
			continue
		}
		included++
		if item.Chunk != nil && item.Chunk.RawSimilarity > top {
			top = item.Chunk.RawSimilarity
		}
	}
	trimmed := 0
	for _, item := range window.Trimmed {
		if item.Kind == domain.WindowItemChunk {
			trimmed++
		}
	}

	decision.IncludedChunks = included
	decision.TrimmedChunks = trimmed
	decision.TopSimilarity = top
	if decision.Intent == domain.IntentRetrieval {
		decision.InsufficientEvidence = included == 0 || top < threshold
		if decision.InsufficientEvidence {
			decision.ReasonCode = "insufficient_evidence"
		}
	}
	return decision
}
