package ports

import (
	"context"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// ContextBuilder is the inbound contract: one question in, one
// token-budgeted citable context out.
type ContextBuilder interface {
	BuildContext(ctx context.Context, req domain.RetrievalRequest) (*domain.ContextResult, error)
}
