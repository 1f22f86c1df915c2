package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

type rerankerFake struct {
	results []ports.RerankResult
	err     error
}

func (f *rerankerFake) Rerank(context.Context, string, []string, int) ([]ports.RerankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func enrichedPool() []domain.EnrichedCandidate {
	return []domain.EnrichedCandidate{
		{Candidate: domain.Candidate{ChunkText: "refund policy thirty days", RawSimilarity: 0.9}, DocID: "doc-1", FinalScore: 0.9, RetrievalOrder: 0},
		{Candidate: domain.Candidate{ChunkText: "refund policy thirty days full text", RawSimilarity: 0.8}, DocID: "doc-2", FinalScore: 0.8, RetrievalOrder: 1},
		{Candidate: domain.Candidate{ChunkText: "shipping times for europe", RawSimilarity: 0.7}, DocID: "doc-3", FinalScore: 0.7, RetrievalOrder: 2},
	}
}

func TestResolveRankerModeFailsClosed(t *testing.T) {
	if mode := resolveRankerMode("cross-encoder-9000", domain.RankerModeMMR); mode != domain.RankerModeNone {
		t.Fatalf("expected unknown request mode to fail closed to none, got %q", mode)
	}
	if mode := resolveRankerMode("", "mystery"); mode != domain.RankerModeNone {
		t.Fatalf("expected unknown configured mode to fail closed to none, got %q", mode)
	}
	if mode := resolveRankerMode("", domain.RankerModeRemote); mode != domain.RankerModeRemote {
		t.Fatalf("expected configured default used, got %q", mode)
	}
}

func TestRankNoneOrdersByScoreAndTruncates(t *testing.T) {
	ranker := NewRanker(nil)
	pool := []domain.EnrichedCandidate{
		{DocID: "low", FinalScore: 0.1, RetrievalOrder: 0},
		{DocID: "high", FinalScore: 0.9, RetrievalOrder: 1},
		{DocID: "mid", FinalScore: 0.5, RetrievalOrder: 2},
	}

	ranked, diversity := ranker.Rank(context.Background(), domain.RankerModeNone, "q", pool, domain.KPlan{FinalK: 2}, 0.7)
	if diversity {
		t.Fatalf("none mode must not report diversity ranking")
	}
	if len(ranked) != 2 {
		t.Fatalf("expected truncation to finalK=2, got %d", len(ranked))
	}
	if ranked[0].DocID != "high" || ranked[1].DocID != "mid" {
		t.Fatalf("unexpected order: %s, %s", ranked[0].DocID, ranked[1].DocID)
	}
	if ranked[0].Rank != 1 || ranked[1].Rank != 2 {
		t.Fatalf("expected 1-based ranks, got %d, %d", ranked[0].Rank, ranked[1].Rank)
	}
}

func TestRankMMRPrefersNovelSecondPick(t *testing.T) {
	ranker := NewRanker(nil)
	plan := domain.KPlan{RetrieveK: 3, RerankK: 2, FinalK: 2, RerankEnabled: true}

	ranked, diversity := ranker.Rank(context.Background(), domain.RankerModeMMR, "refund policy", enrichedPool(), plan, 0.5)
	if !diversity {
		t.Fatalf("mmr mode must report diversity ranking")
	}
	if len(ranked) != 2 {
		t.Fatalf("expected rerankK=2 picks, got %d", len(ranked))
	}
	if ranked[0].DocID != "doc-1" {
		t.Fatalf("expected most relevant first, got %s", ranked[0].DocID)
	}
	if ranked[1].DocID != "doc-3" {
		t.Fatalf("expected novel chunk second, got %s", ranked[1].DocID)
	}
	if ranked[0].FinalScore != 0.9 || ranked[1].FinalScore != 0.7 {
		t.Fatalf("mmr must not recompute final scores, got %g, %g", ranked[0].FinalScore, ranked[1].FinalScore)
	}
}

func TestRankRemoteOverwritesScores(t *testing.T) {
	ranker := NewRanker(&rerankerFake{results: []ports.RerankResult{
		{Index: 2, Score: 0.99},
		{Index: 0, Score: 0.42},
	}})
	plan := domain.KPlan{RetrieveK: 3, RerankK: 2, FinalK: 2, RerankEnabled: true}

	ranked, _ := ranker.Rank(context.Background(), domain.RankerModeRemote, "q", enrichedPool(), plan, 0.7)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 reranked candidates, got %d", len(ranked))
	}
	if ranked[0].DocID != "doc-3" || ranked[0].FinalScore != 0.99 {
		t.Fatalf("expected remote order and score, got %s/%g", ranked[0].DocID, ranked[0].FinalScore)
	}
	if ranked[1].DocID != "doc-1" || ranked[1].FinalScore != 0.42 {
		t.Fatalf("expected remote score overwrite, got %s/%g", ranked[1].DocID, ranked[1].FinalScore)
	}
}

func TestRankRemoteFailureDegradesToScoreOrder(t *testing.T) {
	ranker := NewRanker(&rerankerFake{err: errors.New("rerank down")})
	plan := domain.KPlan{RetrieveK: 3, RerankK: 2, FinalK: 2, RerankEnabled: true}

	ranked, diversity := ranker.Rank(context.Background(), domain.RankerModeRemote, "q", enrichedPool(), plan, 0.7)
	if diversity {
		t.Fatalf("fallback must not report diversity ranking")
	}
	if len(ranked) != 2 || ranked[0].DocID != "doc-1" {
		t.Fatalf("expected score-order fallback, got %+v", ranked)
	}
	if ranked[0].FinalScore != 0.9 {
		t.Fatalf("fallback must preserve final scores, got %g", ranked[0].FinalScore)
	}
}
