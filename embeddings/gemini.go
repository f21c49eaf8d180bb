package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type geminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &geminiEmbedder{client: client, model: model, dimension: opts.Dimension}, nil
}

func (e *geminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		cfg.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini embeddings: %w", err)
	}

	results := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if err := checkDimension("gemini", e.dimension, emb.Values); err != nil {
			return nil, err
		}
		results[i] = emb.Values
	}
	return results, nil
}
