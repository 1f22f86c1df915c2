package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

type generatorFake struct {
	calls   []string
	outputs map[string]string
	err     error
}

func (f *generatorFake) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	for marker, output := range f.outputs {
		if strings.Contains(prompt, marker) {
			return output, nil
		}
	}
	return "", nil
}

func TestEnhanceDisabledIsIdentity(t *testing.T) {
	generator := &generatorFake{}
	enhancer := NewQueryEnhancer(generator)

	enhanced := enhancer.Enhance(context.Background(), domain.RetrievalRequest{Question: "  what is the refund policy?  "})
	if enhanced.OriginalQuestion != "what is the refund policy?" {
		t.Fatalf("expected trimmed original question, got %q", enhanced.OriginalQuestion)
	}
	if enhanced.EmbeddingTarget() != enhanced.OriginalQuestion {
		t.Fatalf("expected identity embedding target, got %q", enhanced.EmbeddingTarget())
	}
	if len(generator.calls) != 0 {
		t.Fatalf("expected no model calls when disabled, got %d", len(generator.calls))
	}
}

func TestEnhanceRewriteAndHyde(t *testing.T) {
	generator := &generatorFake{outputs: map[string]string{
		"Rewrite the user question": "refund policy terms ",
		"Write a short factual":     " Refunds are issued within 30 days. ",
	}}
	enhancer := NewQueryEnhancer(generator)

	enhanced := enhancer.Enhance(context.Background(), domain.RetrievalRequest{
		Question: "what is the refund policy?",
		Flags:    domain.FeatureFlags{ReverseRAGEnabled: true, ReverseRAGMode: domain.ReverseRAGModeRecall, HyDEEnabled: true},
	})
	if enhanced.RewrittenQuery != "refund policy terms" {
		t.Fatalf("expected trimmed rewrite, got %q", enhanced.RewrittenQuery)
	}
	if enhanced.HypotheticalDocument != "Refunds are issued within 30 days." {
		t.Fatalf("expected trimmed hyde document, got %q", enhanced.HypotheticalDocument)
	}
	if enhanced.EmbeddingTarget() != enhanced.HypotheticalDocument {
		t.Fatalf("expected hyde document as embedding target")
	}
}

func TestEnhanceFailuresFallBack(t *testing.T) {
	generator := &generatorFake{err: errors.New("provider down")}
	enhancer := NewQueryEnhancer(generator)

	enhanced := enhancer.Enhance(context.Background(), domain.RetrievalRequest{
		Question: "what is the refund policy?",
		Flags:    domain.FeatureFlags{ReverseRAGEnabled: true, HyDEEnabled: true},
	})
	if enhanced.RewrittenQuery != enhanced.OriginalQuestion {
		t.Fatalf("expected rewrite fallback to original, got %q", enhanced.RewrittenQuery)
	}
	if enhanced.HypotheticalDocument != "" {
		t.Fatalf("expected empty hyde document on failure, got %q", enhanced.HypotheticalDocument)
	}
}

func TestEnhancePrecisionModeUsesLiteralInstruction(t *testing.T) {
	generator := &generatorFake{outputs: map[string]string{}}
	enhancer := NewQueryEnhancer(generator)

	enhancer.Enhance(context.Background(), domain.RetrievalRequest{
		Question: "q",
		Flags:    domain.FeatureFlags{ReverseRAGEnabled: true, ReverseRAGMode: domain.ReverseRAGModePrecision},
	})
	if len(generator.calls) != 1 {
		t.Fatalf("expected one rewrite call, got %d", len(generator.calls))
	}
	if !strings.Contains(generator.calls[0], "literal") {
		t.Fatalf("expected precision instruction in prompt")
	}
}
