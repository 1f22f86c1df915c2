package usecase

import (
	"fmt"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

func buildRewritePrompt(question, mode string) string {
	instruction := "Rewrite the user question as a broader search query. Expand abbreviations, add likely synonyms, keep the core intent."
	if mode == domain.ReverseRAGModePrecision {
		instruction = "Rewrite the user question as a literal, precise search query. Keep the original terms, remove filler words, do not broaden the meaning."
	}

	return fmt.Sprintf(`%s
Return only the rewritten query, one line, no explanation.

Question:
%s`, instruction, question)
}

func buildHydePrompt(query string) string {
	return fmt.Sprintf(`Write a short factual passage (3-5 sentences) that would directly answer the query below, as if taken from a reference document. Use plain declarative sentences. Do not mention that it is hypothetical.

Query:
%s`, query)
}
