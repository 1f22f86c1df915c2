package domain

// WindowItemKind discriminates entries of the assembled context window.
const (
	WindowItemChunk   = "chunk"
	WindowItemHistory = "history"
	WindowItemSummary = "summary"
)

// WindowItem is one entry of the final context window: a retrieved chunk,
// a prior conversation turn, or a synthetic history summary.
type WindowItem struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`

	Chunk *RankedCandidate  `json:"chunk,omitempty"`
	Turn  *ConversationTurn `json:"turn,omitempty"`
}

// SelectionStats records how the context window was carved out of the
// ranked candidate pool and the conversation history.
type SelectionStats struct {
	CandidatesIn    int  `json:"candidates_in"`
	AfterDedupe     int  `json:"after_dedupe"`
	DroppedByDedupe int  `json:"dropped_by_dedupe"`
	DroppedByQuota  int  `json:"dropped_by_quota"`
	DroppedByBudget int  `json:"dropped_by_budget"`
	DiversityRanked bool `json:"diversity_ranked"`

	HistoryIn       int  `json:"history_in"`
	HistoryIncluded int  `json:"history_included"`
	HistoryTrimmed  int  `json:"history_trimmed"`
	SummaryCreated  bool `json:"summary_created"`
}

// ContextWindowResult is the token-budgeted final selection. Included
// chunk items are ordered by descending final score (retrieval-order
// tie-break); history items keep chronological order.
type ContextWindowResult struct {
	Included []WindowItem `json:"included"`
	Trimmed  []WindowItem `json:"trimmed"`

	ContextTokens int `json:"context_tokens"`
	HistoryTokens int `json:"history_tokens"`

	Selection SelectionStats `json:"selection"`
}

// IncludedChunks returns only the evidence entries of the window.
func (r ContextWindowResult) IncludedChunks() []WindowItem {
	out := make([]WindowItem, 0, len(r.Included))
	for _, item := range r.Included {
		if item.Kind == WindowItemChunk {
			out = append(out, item)
		}
	}
	return out
}
