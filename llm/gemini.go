package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, opts Options) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	return c.generate(ctx, pickModel(params, c.model), messages, c.config(messages, params))
}

func (c *geminiClient) GenerateObject(ctx context.Context, messages []Message, schema Schema, params Params) (json.RawMessage, error) {
	cfg := c.config(messages, params)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema.genaiSchema()

	text, err := c.generate(ctx, pickModel(params, c.model), messages, cfg)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(strings.TrimSpace(text)), nil
}

func (c *geminiClient) generate(ctx context.Context, model string, messages []Message, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, toGeminiContents(messages), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate content: %w", ErrProvider, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrProvider)
	}
	return resp.Text(), nil
}

// config folds system messages into the system instruction; Gemini has no
// system role in the content list.
func (c *geminiClient) config(messages []Message, params Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(params.Temperature),
	}

	var system []string
	for _, msg := range messages {
		if msg.Role == RoleSystem && strings.TrimSpace(msg.Content) != "" {
			system = append(system, msg.Content)
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return cfg
}

func toGeminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents
}
