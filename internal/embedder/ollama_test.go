package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cibotics/cibot-go/internal/rag"
)

func TestOllamaEmbedderRejectsBadBatchBeforeHTTP(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	cases := [][]string{
		nil,
		{},
		{""},
		{"fine", "   "},
		{"\t\n"},
	}
	for _, texts := range cases {
		if _, err := emb.Embed(context.Background(), texts); !errors.Is(err, rag.ErrInvalidInput) {
			t.Errorf("Embed(%q): got %v, want ErrInvalidInput", texts, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests for invalid batches, want 0", n)
	}
}

func TestOllamaEmbedderEmbed(t *testing.T) {
	t.Parallel()

	want := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("model = %q, want all-minilm", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("input length = %d, want 2", len(req.Input))
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: want})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	got, err := emb.Embed(context.Background(), []string{"net income", "total assets"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 || got[0][0] != 0.1 {
		t.Errorf("embeddings = %v, want %v", got, want)
	}
}

func TestOllamaEmbedderServerFailure(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
		}))
		defer srv.Close()

		emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
		if _, err := emb.Embed(context.Background(), []string{"q"}); !errors.Is(err, rag.ErrModelUnavailable) {
			t.Errorf("got %v, want ErrModelUnavailable", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
		if _, err := emb.Embed(context.Background(), []string{"q"}); !errors.Is(err, rag.ErrModelUnavailable) {
			t.Errorf("got %v, want ErrModelUnavailable", err)
		}
	})

	t.Run("count mismatch", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1}}})
		}))
		defer srv.Close()

		emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
		if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
			t.Error("expected error on embedding count mismatch")
		}
	})
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	chat := []string{"mistral", "llama3.2", "gpt-4o", "Qwen2.5"}
	for _, m := range chat {
		if !looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = false, want true", m)
		}
	}
	embed := []string{"all-minilm", "nomic-embed-text", "text-embedding-3-small"}
	for _, m := range embed {
		if looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = true, want false", m)
		}
	}
}
