package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/observability/metrics"
)

type builderFake struct {
	result  *domain.ContextResult
	err     error
	lastReq domain.RetrievalRequest
	calls   int
}

func (b *builderFake) BuildContext(_ context.Context, req domain.RetrievalRequest) (*domain.ContextResult, error) {
	b.calls++
	b.lastReq = req
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func newTestHandler(builder *builderFake, options RouterOptions) http.Handler {
	return NewRouter(builder, metrics.NewHTTPServerMetrics("test"), options).Handler()
}

func postContext(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/context", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestBuildContextEndpointReturnsResult(t *testing.T) {
	builder := &builderFake{result: &domain.ContextResult{
		RequestID: "req-1",
		Guardrail: domain.GuardrailDecision{Intent: domain.IntentRetrieval, IncludedChunks: 2},
	}}
	handler := newTestHandler(builder, RouterOptions{})

	res := postContext(t, handler, `{
		"question": "what is the refund policy?",
		"model_id": "llama3:8b",
		"candidate_k": 30,
		"history": [{"role": "user", "content": "hi"}],
		"flags": {"reverse_rag_enabled": true, "reverse_rag_mode": "precision"}
	}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.ContextResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", result.RequestID)
	}
	if builder.lastReq.Question != "what is the refund policy?" {
		t.Fatalf("question not forwarded: %q", builder.lastReq.Question)
	}
	if builder.lastReq.ModelID != "llama3:8b" || builder.lastReq.CandidateK != 30 {
		t.Fatalf("request fields not forwarded: %+v", builder.lastReq)
	}
	if !builder.lastReq.Flags.ReverseRAGEnabled || builder.lastReq.Flags.ReverseRAGMode != "precision" {
		t.Fatalf("flags not forwarded: %+v", builder.lastReq.Flags)
	}
	if len(builder.lastReq.History) != 1 || builder.lastReq.History[0].Content != "hi" {
		t.Fatalf("history not forwarded: %+v", builder.lastReq.History)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestBuildContextRejectsBlankQuestion(t *testing.T) {
	builder := &builderFake{}
	handler := newTestHandler(builder, RouterOptions{})

	res := postContext(t, handler, `{"question": "   "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if builder.calls != 0 {
		t.Fatalf("builder must not run for blank questions")
	}
}

func TestBuildContextRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(&builderFake{}, RouterOptions{})

	res := postContext(t, handler, `{not json`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestBuildContextRejectsNonPost(t *testing.T) {
	handler := newTestHandler(&builderFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/context", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestBuildContextMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "build", domain.ErrInvalidInput), http.StatusBadRequest},
		{"retrieval unavailable", domain.WrapError(domain.ErrRetrievalUnavailable, "embed", http.ErrServerClosed), http.StatusServiceUnavailable},
		{"temporary", domain.WrapError(domain.ErrTemporary, "generate", http.ErrServerClosed), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(&builderFake{err: tc.err}, RouterOptions{})
			res := postContext(t, handler, `{"question": "q"}`)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			if !strings.Contains(res.Body.String(), "error") {
				t.Fatalf("expected error payload, got %s", res.Body.String())
			}
		})
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	handler := newTestHandler(&builderFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestMetricsEndpointIsExposed(t *testing.T) {
	handler := newTestHandler(&builderFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
