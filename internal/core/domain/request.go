package domain

import "strings"

// ReverseRAGMode selects the query-rewrite instruction flavor.
const (
	ReverseRAGModePrecision = "precision"
	ReverseRAGModeRecall    = "recall"
)

// Ranker mode values accepted on a request. Anything else falls back
// to RankerModeNone without failing the request.
const (
	RankerModeNone   = "none"
	RankerModeMMR    = "mmr"
	RankerModeRemote = "remote"
)

type FeatureFlags struct {
	ReverseRAGEnabled bool   `json:"reverse_rag_enabled"`
	ReverseRAGMode    string `json:"reverse_rag_mode"`
	HyDEEnabled       bool   `json:"hyde_enabled"`
	RankerMode        string `json:"ranker_mode"`
}

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievalRequest is the immutable input of one pipeline run.
type RetrievalRequest struct {
	Question   string             `json:"question"`
	History    []ConversationTurn `json:"history,omitempty"`
	ModelID    string             `json:"model_id,omitempty"`
	Flags      FeatureFlags       `json:"flags"`
	CandidateK int                `json:"candidate_k,omitempty"`
}

// EnhancedQuery is produced once by the enhancement stage and never mutated.
type EnhancedQuery struct {
	OriginalQuestion     string `json:"original_question"`
	RewrittenQuery       string `json:"rewritten_query"`
	HypotheticalDocument string `json:"hypothetical_document,omitempty"`
}

// EmbeddingTarget is the text handed to the embedder: the hypothetical
// document when HyDE produced one, otherwise the rewritten query,
// otherwise the original question.
func (q EnhancedQuery) EmbeddingTarget() string {
	if strings.TrimSpace(q.HypotheticalDocument) != "" {
		return q.HypotheticalDocument
	}
	if strings.TrimSpace(q.RewrittenQuery) != "" {
		return q.RewrittenQuery
	}
	return q.OriginalQuestion
}

// KPlan is the normalized (retrieveK, rerankK, finalK) triple.
// RerankK is 0 when reranking is disabled.
type KPlan struct {
	RetrieveK     int  `json:"retrieve_k"`
	RerankK       int  `json:"rerank_k,omitempty"`
	FinalK        int  `json:"final_k"`
	RerankEnabled bool `json:"rerank_enabled"`
}
