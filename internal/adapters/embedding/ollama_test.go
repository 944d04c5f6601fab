package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phuslu/log"
)

var testLogger = log.Logger{Level: log.PanicLevel}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var gotReq ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "test-model", 0, testLogger)
	got, err := embedder.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 3 {
		t.Errorf("got %d dimensions, want 3", len(got))
	}
	if gotReq.Model != "test-model" || gotReq.Prompt != "hello world" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestOllamaEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		// Encode the prompt length so order is observable.
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "m", 0, testLogger)
	got, err := embedder.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d embeddings", len(got))
	}
	for i, want := range []float32{1, 2, 3} {
		if got[i][0] != want {
			t.Errorf("embedding %d = %v, want %v", i, got[i][0], want)
		}
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "m", 0, testLogger)
	if _, err := embedder.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}
