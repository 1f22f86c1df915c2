package domain

import "fmt"

// DefaultRerankK caps the derived rerank width when no explicit width
// is configured.
const DefaultRerankK = 20

// Weight clamp bounds for metadata-derived candidate weights.
const (
	WeightFloor = 0.1
	WeightCeil  = 3.0
)

// RetrievalSettings is the immutable per-request configuration snapshot.
// Out-of-range values are clamped by Normalize, never rejected.
type RetrievalSettings struct {
	TopK           int `yaml:"top_k" json:"top_k"`
	RetrievalFloor int `yaml:"retrieval_floor" json:"retrieval_floor"`
	RerankTopN     int `yaml:"rerank_top_n" json:"rerank_top_n"`

	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// RankerMode is the default ranking strategy when the request does
	// not carry one. Unknown values fall back to "none" at run time.
	RankerMode string `yaml:"ranker_mode" json:"ranker_mode"`

	ContextTokenBudget int `yaml:"context_token_budget" json:"context_token_budget"`
	ContextClipChars   int `yaml:"context_clip_chars" json:"context_clip_chars"`
	HistoryTokenBudget int `yaml:"history_token_budget" json:"history_token_budget"`
	HistoryClipChars   int `yaml:"history_clip_chars" json:"history_clip_chars"`
	CharsPerToken      int `yaml:"chars_per_token" json:"chars_per_token"`
	ExcerptQuotaPerDoc int `yaml:"excerpt_quota_per_doc" json:"excerpt_quota_per_doc"`
	SnippetMaxChars    int `yaml:"snippet_max_chars" json:"snippet_max_chars"`

	MMRLambda float64 `yaml:"mmr_lambda" json:"mmr_lambda"`

	SummaryEnabled       bool `yaml:"summary_enabled" json:"summary_enabled"`
	SummaryTriggerTokens int  `yaml:"summary_trigger_tokens" json:"summary_trigger_tokens"`
	SummaryMaxTurns      int  `yaml:"summary_max_turns" json:"summary_max_turns"`
	SummaryMaxChars      int  `yaml:"summary_max_chars" json:"summary_max_chars"`

	DocTypeWeights     map[string]float64 `yaml:"doc_type_weights" json:"doc_type_weights"`
	PersonaTypeWeights map[string]float64 `yaml:"persona_type_weights" json:"persona_type_weights"`

	ChitchatKeywords    []string `yaml:"chitchat_keywords" json:"chitchat_keywords"`
	CommandKeywords     []string `yaml:"command_keywords" json:"command_keywords"`
	ChitchatInstruction string   `yaml:"chitchat_instruction" json:"chitchat_instruction"`
	CommandInstruction  string   `yaml:"command_instruction" json:"command_instruction"`
}

func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		TopK:                 5,
		RetrievalFloor:       20,
		RerankTopN:           0,
		SimilarityThreshold:  0.35,
		RankerMode:           RankerModeNone,
		ContextTokenBudget:   2048,
		ContextClipChars:     1600,
		HistoryTokenBudget:   1024,
		HistoryClipChars:     1200,
		CharsPerToken:        4,
		ExcerptQuotaPerDoc:   2,
		SnippetMaxChars:      220,
		MMRLambda:            0.7,
		SummaryEnabled:       true,
		SummaryTriggerTokens: 768,
		SummaryMaxTurns:      6,
		SummaryMaxChars:      800,
		ChitchatInstruction:  "Reply conversationally. No documents were consulted for this turn.",
		CommandInstruction:   "Acknowledge the command and describe the action taken. No documents were consulted for this turn.",
	}
}

// Normalize clamps malformed values to safe bounds and reports every
// adjustment so callers can log configuration warnings.
func (s RetrievalSettings) Normalize() (RetrievalSettings, []string) {
	def := DefaultRetrievalSettings()
	var warnings []string

	clampInt := func(name string, v *int, min, fallback int) {
		if *v < min {
			warnings = append(warnings, fmt.Sprintf("%s=%d below %d, using %d", name, *v, min, fallback))
			*v = fallback
		}
	}

	if s.TopK < 1 {
		warnings = append(warnings, fmt.Sprintf("top_k=%d below 1, using %d", s.TopK, def.TopK))
		s.TopK = def.TopK
	}
	clampInt("retrieval_floor", &s.RetrievalFloor, 1, def.RetrievalFloor)
	if s.RerankTopN < 0 {
		warnings = append(warnings, fmt.Sprintf("rerank_top_n=%d negative, treating as unset", s.RerankTopN))
		s.RerankTopN = 0
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		warnings = append(warnings, fmt.Sprintf("similarity_threshold=%g out of [0,1], using %g", s.SimilarityThreshold, def.SimilarityThreshold))
		s.SimilarityThreshold = def.SimilarityThreshold
	}
	if s.ContextTokenBudget < 0 {
		warnings = append(warnings, fmt.Sprintf("context_token_budget=%d negative, using %d", s.ContextTokenBudget, def.ContextTokenBudget))
		s.ContextTokenBudget = def.ContextTokenBudget
	}
	if s.HistoryTokenBudget < 0 {
		warnings = append(warnings, fmt.Sprintf("history_token_budget=%d negative, using %d", s.HistoryTokenBudget, def.HistoryTokenBudget))
		s.HistoryTokenBudget = def.HistoryTokenBudget
	}
	clampInt("context_clip_chars", &s.ContextClipChars, 1, def.ContextClipChars)
	clampInt("history_clip_chars", &s.HistoryClipChars, 1, def.HistoryClipChars)
	clampInt("chars_per_token", &s.CharsPerToken, 1, def.CharsPerToken)
	clampInt("excerpt_quota_per_doc", &s.ExcerptQuotaPerDoc, 1, def.ExcerptQuotaPerDoc)
	clampInt("snippet_max_chars", &s.SnippetMaxChars, 1, def.SnippetMaxChars)
	if s.MMRLambda < 0 || s.MMRLambda > 1 {
		warnings = append(warnings, fmt.Sprintf("mmr_lambda=%g out of [0,1], using %g", s.MMRLambda, def.MMRLambda))
		s.MMRLambda = def.MMRLambda
	}
	clampInt("summary_trigger_tokens", &s.SummaryTriggerTokens, 0, def.SummaryTriggerTokens)
	clampInt("summary_max_turns", &s.SummaryMaxTurns, 1, def.SummaryMaxTurns)
	clampInt("summary_max_chars", &s.SummaryMaxChars, 1, def.SummaryMaxChars)

	s.DocTypeWeights = clampWeightTable("doc_type_weights", s.DocTypeWeights, &warnings)
	s.PersonaTypeWeights = clampWeightTable("persona_type_weights", s.PersonaTypeWeights, &warnings)

	return s, warnings
}

// clampWeightTable pins configured weights into [WeightFloor, WeightCeil].
// An explicitly configured zero is preserved: it zeroes a candidate's
// score without removing it from quotas.
func clampWeightTable(name string, table map[string]float64, warnings *[]string) map[string]float64 {
	if len(table) == 0 {
		return table
	}
	out := make(map[string]float64, len(table))
	for key, weight := range table {
		switch {
		case weight == 0:
			out[key] = 0
		case weight < WeightFloor:
			*warnings = append(*warnings, fmt.Sprintf("%s[%s]=%g below %g, clamped", name, key, weight, WeightFloor))
			out[key] = WeightFloor
		case weight > WeightCeil:
			*warnings = append(*warnings, fmt.Sprintf("%s[%s]=%g above %g, clamped", name, key, weight, WeightCeil))
			out[key] = WeightCeil
		default:
			out[key] = weight
		}
	}
	return out
}
