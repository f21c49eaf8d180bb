package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/llm"
)

func TestNewClientDefaults(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderOllama,
			Model:    "llama3.1:8b",
		},
		OllamaHost: "http://localhost:11434",
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		t.Fatalf("expected llm client, got error: %v", err)
	}

	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestNewClientRequiresAPIKeys(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderGemini} {
		cfg := config.Config{LLM: config.LLMConfig{Provider: provider, Model: "m"}}
		if _, err := llm.NewClient(cfg); err == nil {
			t.Fatalf("expected error for %s without an API key", provider)
		}
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := llm.NewClient(config.Config{LLM: config.LLMConfig{Provider: "bard"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

type capturedChat struct {
	Model    string          `json:"model"`
	Messages []llm.Message   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format"`
	Options  struct {
		Temperature float32 `json:"temperature"`
	} `json:"options"`
}

func newOllama(t *testing.T, handler func(w http.ResponseWriter, req capturedChat)) llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req capturedChat
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return llm.NewOllamaClient(llm.Options{OllamaHost: srv.URL + "/", Model: "llama3"})
}

func TestOllamaGenerate(t *testing.T) {
	var got capturedChat
	client := newOllama(t, func(w http.ResponseWriter, req capturedChat) {
		got = req
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "Innovate Grant"}, "done": true}`))
	})

	text, err := client.Generate(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "name the grant"},
	}, llm.Params{Model: "small", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Innovate Grant", text)

	assert.Equal(t, "small", got.Model)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.7, got.Options.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	assert.Empty(t, got.Format)
}

func TestOllamaGenerateObjectSendsSchema(t *testing.T) {
	var got capturedChat
	client := newOllama(t, func(w http.ResponseWriter, req capturedChat) {
		got = req
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": " {\"questions\": [\"Start date?\"]} "}}`))
	})

	raw, err := client.GenerateObject(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "list questions"}},
		llm.StringList("question_list", "questions", "form questions"),
		llm.Params{},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions": ["Start date?"]}`, string(raw))
	assert.Equal(t, "llama3", got.Model)

	var format map[string]any
	require.NoError(t, json.Unmarshal(got.Format, &format))
	assert.Equal(t, "object", format["type"])
	assert.Equal(t, []any{"questions"}, format["required"])
	assert.Equal(t, false, format["additionalProperties"])
}

func TestOllamaErrorsWrapProvider(t *testing.T) {
	client := newOllama(t, func(w http.ResponseWriter, _ capturedChat) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrProvider))
	assert.Contains(t, err.Error(), "model not found")

	client = newOllama(t, func(w http.ResponseWriter, _ capturedChat) {
		_, _ = w.Write([]byte(`{"error": "out of memory"}`))
	})
	_, err = client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.Params{})
	assert.ErrorIs(t, err, llm.ErrProvider)
}

func TestOllamaHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	client := llm.NewOllamaClient(llm.Options{OllamaHost: srv.URL, Model: "llama3"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
