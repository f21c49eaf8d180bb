package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   json.RawMessage     `json:"format,omitempty"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	// No client timeout: local generation can run long, and callers bound it
	// through ctx.
	return &ollamaClient{
		host:   host,
		model:  opts.Model,
		client: &http.Client{},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	return c.chat(ctx, messages, nil, params)
}

func (c *ollamaClient) GenerateObject(ctx context.Context, messages []Message, schema Schema, params Params) (json.RawMessage, error) {
	definition := schema.jsonSchema()
	format, err := json.Marshal(&definition)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama format schema: %w", err)
	}

	content, err := c.chat(ctx, messages, format, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(strings.TrimSpace(content)), nil
}

func (c *ollamaClient) chat(ctx context.Context, messages []Message, format json.RawMessage, params Params) (string, error) {
	payload := ollamaChatRequest{
		Model:    pickModel(params, c.model),
		Messages: toOllamaMessages(messages),
		Stream:   false,
		Format:   format,
		Options:  ollamaOptions{Temperature: params.Temperature},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: call ollama chat API: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("%w: read ollama chat error body: %w", ErrProvider, readErr)
		}
		if len(data) > 0 {
			return "", fmt.Errorf("%w: ollama chat API error: %s", ErrProvider, string(data))
		}
		return "", fmt.Errorf("%w: ollama chat API returned status %s", ErrProvider, resp.Status)
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %w", ErrProvider, err)
	}

	if parsed.Error != "" {
		return "", fmt.Errorf("%w: ollama chat error: %s", ErrProvider, parsed.Error)
	}

	return parsed.Message.Content, nil
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	if len(messages) == 0 {
		return nil
	}
	converted := make([]ollamaChatMessage, len(messages))
	for i := range messages {
		converted[i] = ollamaChatMessage(messages[i])
	}
	return converted
}
