package usecase

import "github.com/kirillkom/rag-context-engine/internal/core/domain"

// normalizeKPlan reconciles the configured final width, the retrieval
// floor and the request's candidateK hint into a consistent
// (retrieveK, rerankK, finalK) triple. Pure function: the same inputs
// always yield the same plan, and finalK <= rerankK <= retrieveK holds
// whenever reranking is enabled.
func normalizeKPlan(settings domain.RetrievalSettings, candidateK int, rerankEnabled bool) domain.KPlan {
	finalKBase := settings.TopK
	if finalKBase < 1 {
		finalKBase = 1
	}

	retrieveKBase := settings.RetrievalFloor
	if candidateK > retrieveKBase {
		retrieveKBase = candidateK
	}
	if retrieveKBase < 1 {
		retrieveKBase = 1
	}

	if !rerankEnabled {
		retrieveK := max(retrieveKBase, finalKBase)
		return domain.KPlan{
			RetrieveK: retrieveK,
			FinalK:    min(finalKBase, retrieveK),
		}
	}

	rerankKBase := settings.RerankTopN
	if rerankKBase <= 0 {
		rerankKBase = min(retrieveKBase, domain.DefaultRerankK)
	}

	retrieveK := max(retrieveKBase, rerankKBase)
	rerankK := min(rerankKBase, retrieveK)
	return domain.KPlan{
		RetrieveK:     retrieveK,
		RerankK:       rerankK,
		FinalK:        min(finalKBase, rerankK),
		RerankEnabled: true,
	}
}
