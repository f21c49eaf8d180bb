package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, params))
	if err != nil {
		return "", fmt.Errorf("%w: create openai chat completion: %w", ErrProvider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat completion returned no choices", ErrProvider)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) GenerateObject(ctx context.Context, messages []Message, schema Schema, params Params) (json.RawMessage, error) {
	req := c.request(messages, params)
	definition := schema.jsonSchema()
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   schema.Name,
			Schema: &definition,
			Strict: true,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: create openai structured completion: %w", ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai structured completion returned no choices", ErrProvider)
	}

	return json.RawMessage(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

func (c *openAIClient) request(messages []Message, params Params) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       pickModel(params, c.model),
		Temperature: params.Temperature,
	}
	// The request field is omitempty, so an exact zero would fall back to the
	// provider default of 1.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	req.Messages = make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return req
}
