package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/embeddings"
)

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 3,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("expected embedder, got error: %v", err)
	}

	if embedder == nil {
		t.Fatal("expected non-nil embedder")
	}
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		if len(req.Input) == 1 && req.Input[0] == "short" {
			_, _ = w.Write([]byte(`{"embeddings": [[1]]}`))
			return
		}
		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = []float32{0.5, 0.25, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()

	e := embeddings.NewOllamaEmbedder(embeddings.Options{OllamaHost: srv.URL, Model: "nomic-embed-text", Dimension: 3})

	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.5, 0.25, 0}, vectors[0])
	assert.Equal(t, []float32{0.5, 0.25, 1}, vectors[1])

	_, err = e.Embed(context.Background(), []string{"short"})
	assert.ErrorContains(t, err, "dimension mismatch")

	vectors, err = e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestOllamaEmbedderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := embeddings.NewOllamaEmbedder(embeddings.Options{OllamaHost: srv.URL, Model: "missing"})
	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "model not found")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, embeddings.Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, embeddings.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, embeddings.Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, embeddings.Cosine(nil, nil))
	assert.Zero(t, embeddings.Cosine([]float32{0, 0}, []float32{1, 1}))
}
