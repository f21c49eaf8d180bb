package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fabfab/grant-drafter/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrProvider marks failures raised by the completion provider or the
// network underneath it. Callers surface it without retrying.
var ErrProvider = errors.New("llm provider error")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params tunes a single completion. Model overrides the client default when set.
type Params struct {
	Model       string
	Temperature float32
}

// Client is the completion contract consumed by the pipeline: plain text
// completion and structured-object completion constrained by a schema.
// GenerateObject returns the raw JSON document; shape validation is the
// caller's job.
type Client interface {
	Generate(ctx context.Context, messages []Message, params Params) (string, error)
	GenerateObject(ctx context.Context, messages []Message, schema Schema, params Params) (json.RawMessage, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	case config.ProviderGemini:
		if opts.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but GEMINI_API_KEY not set")
		}
		return NewGeminiClient(context.Background(), opts)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

func pickModel(params Params, fallback string) string {
	if params.Model != "" {
		return params.Model
	}
	return fallback
}
