package domain

// NoCitationsMessage is emitted when the context window holds no evidence.
const NoCitationsMessage = "No citations were generated."

// ChunkDetail is one excerpt attributed to a cited document.
type ChunkDetail struct {
	Index      int     `json:"index"`
	Snippet    string  `json:"snippet"`
	Similarity float64 `json:"similarity"`
}

// CitationDocScore is the document-level aggregate of the context
// window's chunk items. Derived per request, never persisted.
type CitationDocScore struct {
	DocID       string `json:"doc_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	DocType     string `json:"doc_type"`
	PersonaType string `json:"persona_type"`

	SimilarityMax   float64 `json:"similarity_max"`
	SimilarityAvg   float64 `json:"similarity_avg"`
	Weight          float64 `json:"weight"`
	FinalScore      float64 `json:"final_score"`
	NormalizedScore int     `json:"normalized_score"`

	ExcerptCount int           `json:"excerpt_count"`
	ChunkIndices []int         `json:"chunk_indices"`
	Chunks       []ChunkDetail `json:"chunks"`
}

type CitationMeta struct {
	TopKChunks int    `json:"top_k_chunks"`
	UniqueDocs int    `json:"unique_docs"`
	Message    string `json:"message"`
}

type CitationPayload struct {
	Citations []CitationDocScore `json:"citations"`
	Meta      CitationMeta       `json:"meta"`
}
