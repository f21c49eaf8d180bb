// Package embeddings turns short texts into vectors. The pipeline uses them to
// collapse near-duplicate questions and to index finished drafts.
package embeddings

import (
	"context"
	"fmt"

	"github.com/fabfab/grant-drafter/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	case config.ProviderGemini:
		if opts.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but GEMINI_API_KEY not set")
		}
		return NewGeminiEmbedder(context.Background(), opts)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

func checkDimension(provider string, want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%s embedding dimension mismatch: expected %d, got %d", provider, want, len(vec))
	}
	return nil
}
