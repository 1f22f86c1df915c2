package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchMapsHitsToCandidates(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/chunks/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"text":"alpha","doc_id":"doc-1","title":"Alpha","chunk_index":3}},
			{"score":0.72,"payload":{"page_content":"beta","notion_page_id":"page-9","url":"https://ex.com/b"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 25)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkText != "alpha" || hits[0].RawSimilarity != 0.91 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Payload.DocID != "doc-1" || hits[0].Payload.ChunkIndex != 3 {
		t.Fatalf("payload not canonicalized: %+v", hits[0].Payload)
	}
	if hits[1].ChunkText != "beta" || hits[1].Payload.PageID != "page-9" {
		t.Fatalf("legacy payload keys not mapped: %+v", hits[1])
	}
	if hits[1].Payload.ChunkIndex != -1 {
		t.Fatalf("missing chunk index must default to -1, got %d", hits[1].Payload.ChunkIndex)
	}
	if captured["limit"] != float64(25) {
		t.Fatalf("expected limit 25, got %v", captured["limit"])
	}
	if captured["with_payload"] != true {
		t.Fatalf("payload must be requested")
	}
	if _, ok := captured["score_threshold"]; ok {
		t.Fatalf("threshold must be absent when unset")
	}
}

func TestSearchSendsScoreThreshold(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks").WithScoreThreshold(0.35)
	if _, err := client.Search(context.Background(), []float32{0.1}, 10); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if captured["score_threshold"] != 0.35 {
		t.Fatalf("expected threshold 0.35, got %v", captured["score_threshold"])
	}
}

func TestSearchIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	_, err := client.Search(context.Background(), []float32{0.1}, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestSearchRejectsEmptyVector(t *testing.T) {
	client := New("http://localhost:6333", "chunks")
	if _, err := client.Search(context.Background(), nil, 10); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}
