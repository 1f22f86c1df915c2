package httprerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRerankSendsQueryDocumentsAndTopN(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.93},{"index":0,"relevance_score":0.41}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-v2")
	results, err := client.Rerank(context.Background(), "refund policy", []string{"doc a", "doc b"}, 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 || results[0].Score != 0.93 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if captured["query"] != "refund policy" {
		t.Fatalf("unexpected query: %v", captured["query"])
	}
	if captured["top_n"] != float64(2) {
		t.Fatalf("unexpected top_n: %v", captured["top_n"])
	}
	if captured["model"] != "bge-reranker-v2" {
		t.Fatalf("unexpected model: %v", captured["model"])
	}
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.9}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "")
	if _, err := client.Rerank(context.Background(), "q", []string{"only doc"}, 1); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestRerankIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.Rerank(context.Background(), "q", []string{"doc"}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model loading") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestRerankSkipsRequestForEmptyDocuments(t *testing.T) {
	client := New("http://localhost:9", "")
	results, err := client.Rerank(context.Background(), "q", nil, 3)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}
