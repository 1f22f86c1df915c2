package domain

import "strings"

// ChunkPayloadSchemaVersion tags the canonicalized chunk metadata shape.
const ChunkPayloadSchemaVersion = 1

// ChunkPayload is the canonical metadata attached to one indexed chunk.
// Vector-index payloads are normalized into this schema exactly once,
// by CanonicalizeChunkPayload; downstream code never key-probes raw maps.
type ChunkPayload struct {
	SchemaVersion int    `json:"schema_version"`
	DocID         string `json:"doc_id,omitempty"`
	PageID        string `json:"page_id,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
	Title         string `json:"title,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
}

// Ordered fallback key lists accepted from legacy index payloads.
// First non-empty hit wins.
var (
	docIDKeys = []string{"doc_id", "document_id", "docId"}
	pageKeys  = []string{"page_id", "pageId", "notion_page_id"}
	urlKeys   = []string{"source_url", "url", "source"}
	titleKeys = []string{"title", "filename", "name"}
)

// CanonicalizeChunkPayload maps an arbitrary index payload into the
// versioned schema. Missing fields stay empty; ChunkIndex defaults to -1.
func CanonicalizeChunkPayload(raw map[string]any) ChunkPayload {
	return ChunkPayload{
		SchemaVersion: ChunkPayloadSchemaVersion,
		DocID:         firstString(raw, docIDKeys),
		PageID:        firstString(raw, pageKeys),
		SourceURL:     firstString(raw, urlKeys),
		Title:         firstString(raw, titleKeys),
		ChunkIndex:    intOrDefault(raw, "chunk_index", -1),
	}
}

func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intOrDefault(raw map[string]any, key string, fallback int) int {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

// Candidate is one raw vector-search hit. Provider ordering is arbitrary.
type Candidate struct {
	ChunkText     string       `json:"chunk_text"`
	RawSimilarity float64      `json:"raw_similarity"`
	Payload       ChunkPayload `json:"payload"`
}

// DocumentMeta is the authoritative per-document record from the
// metadata store.
type DocumentMeta struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SourceURL   string `json:"source_url"`
	DocType     string `json:"doc_type"`
	PersonaType string `json:"persona_type"`
	Visible     bool   `json:"visible"`
}

// EnrichedCandidate is a candidate with resolved document identity,
// authoritative metadata and the metadata-derived weight applied.
type EnrichedCandidate struct {
	Candidate

	DocID          string  `json:"doc_id"`
	Title          string  `json:"title"`
	SourceURL      string  `json:"source_url"`
	DocType        string  `json:"doc_type"`
	PersonaType    string  `json:"persona_type"`
	MetadataWeight float64 `json:"metadata_weight"`
	FinalScore     float64 `json:"final_score"`

	// RetrievalOrder is the candidate's position in the original search
	// result and is the stable tie-breaker for every later sort.
	RetrievalOrder int `json:"retrieval_order"`
}

// RankedCandidate carries the rank position assigned by the ranking stage.
type RankedCandidate struct {
	EnrichedCandidate
	Rank int `json:"rank"`
}
