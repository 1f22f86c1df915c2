package domain

type Intent string

const (
	IntentRetrieval Intent = "retrieval"
	IntentChitchat  Intent = "chitchat"
	IntentCommand   Intent = "command"
)

// GuardrailDecision says whether retrieval ran and how much evidence
// the window ended up with.
type GuardrailDecision struct {
	Intent     Intent `json:"intent"`
	ReasonCode string `json:"reason_code"`

	IncludedChunks       int     `json:"included_chunks"`
	TrimmedChunks        int     `json:"trimmed_chunks"`
	TopSimilarity        float64 `json:"top_similarity"`
	InsufficientEvidence bool    `json:"insufficient_evidence"`

	// FallbackInstruction replaces the retrieval context for
	// chitchat/command turns.
	FallbackInstruction string `json:"fallback_instruction,omitempty"`
}

// RetrievalSkipped reports whether the pipeline bypassed retrieval.
func (d GuardrailDecision) RetrievalSkipped() bool {
	return d.Intent == IntentChitchat || d.Intent == IntentCommand
}

// ContextResult is the full pipeline output handed to the generation layer.
type ContextResult struct {
	RequestID string              `json:"request_id"`
	Guardrail GuardrailDecision   `json:"guardrail"`
	Enhanced  EnhancedQuery       `json:"enhanced"`
	Plan      KPlan               `json:"plan"`
	Window    ContextWindowResult `json:"window"`
	Citations CitationPayload     `json:"citations"`
}
