package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

// QueryEnhancer optionally rewrites the question for recall and
// synthesizes a hypothetical answer document used as the embedding
// target. Both sub-calls degrade gracefully: on failure the pipeline
// continues with the pre-stage value.
type QueryEnhancer struct {
	generator ports.TextGenerator
}

func NewQueryEnhancer(generator ports.TextGenerator) *QueryEnhancer {
	return &QueryEnhancer{generator: generator}
}

func (e *QueryEnhancer) Enhance(ctx context.Context, req domain.RetrievalRequest) domain.EnhancedQuery {
	question := strings.TrimSpace(req.Question)
	enhanced := domain.EnhancedQuery{
		OriginalQuestion: question,
		RewrittenQuery:   question,
	}

	if req.Flags.ReverseRAGEnabled {
		rewritten, err := e.generator.Generate(ctx, buildRewritePrompt(question, req.Flags.ReverseRAGMode), req.ModelID)
		switch {
		case err != nil:
			slog.Warn("query_rewrite_failed", "mode", req.Flags.ReverseRAGMode, "error", err)
		case strings.TrimSpace(rewritten) != "":
			enhanced.RewrittenQuery = strings.TrimSpace(rewritten)
		}
	}

	if req.Flags.HyDEEnabled {
		document, err := e.generator.Generate(ctx, buildHydePrompt(enhanced.RewrittenQuery), req.ModelID)
		if err != nil {
			slog.Warn("hyde_synthesis_failed", "error", err)
		} else {
			enhanced.HypotheticalDocument = strings.TrimSpace(document)
		}
	}

	return enhanced
}
