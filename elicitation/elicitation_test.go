package elicitation_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/elicitation"
	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/llm"
)

type stubLLM struct {
	object   string
	err      error
	calls    int
	messages []llm.Message
	params   llm.Params
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	return "", errors.New("not used")
}

func (s *stubLLM) GenerateObject(ctx context.Context, messages []llm.Message, schema llm.Schema, params llm.Params) (json.RawMessage, error) {
	s.calls++
	s.messages = messages
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.object), nil
}

var _ llm.Client = (*stubLLM)(nil)

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}

type countingSource struct {
	questions elicitation.QuestionList
	calls     int
}

func (c *countingSource) Synthesize(ctx context.Context, _ corpus.Corpus) (elicitation.QuestionList, error) {
	c.calls++
	return c.questions, nil
}

func acmeInputs() corpus.Inputs {
	return corpus.Inputs{
		Company: corpus.CompanyProfile{Name: "Acme Inc."},
		Grant:   corpus.GrantDetails{ProgramName: "Innovate Grant"},
		ApplicationForm: &ingestion.Extraction{
			Label: "Application Form",
			Text:  "1. What is the project start date? 2. How many staff will work on the project?",
		},
	}
}

func TestSynthesizeValidResponse(t *testing.T) {
	client := &stubLLM{object: `{"questions": ["What is the project start date?", "  How many staff will work on the project? "]}`}
	synth := elicitation.NewSynthesizer(client, nil, config.DefaultPromptPolicy(), nil)

	c := corpus.Assemble(acmeInputs())
	questions, err := synth.Synthesize(context.Background(), c)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(questions), 2)
	assert.Equal(t, elicitation.QuestionList{"What is the project start date?", "How many staff will work on the project?"}, questions)
	assert.Equal(t, 1, client.calls)
	assert.Zero(t, client.params.Temperature)

	require.Len(t, client.messages, 2)
	assert.Equal(t, llm.RoleSystem, client.messages[0].Role)
	assert.Contains(t, client.messages[0].Content, "COMPANY DETAILS:\n- Name: Acme Inc.")
	assert.Contains(t, client.messages[1].Content, "- signatures or declarations")
}

func TestSynthesizeFailsClosed(t *testing.T) {
	cases := map[string]string{
		"not json":      `questions: none`,
		"missing field": `{"items": []}`,
		"wrong type":    `{"questions": "one"}`,
		"empty entry":   `{"questions": ["Q1?", "  "]}`,
		"extra field":   `{"questions": ["Q1?"], "note": "x"}`,
		"trailing data": `{"questions": ["Q1?"]} {"questions": []}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			synth := elicitation.NewSynthesizer(&stubLLM{object: body}, nil, config.PromptPolicy{}, nil)
			questions, err := synth.Synthesize(context.Background(), corpus.Assemble(acmeInputs()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, elicitation.ErrValidation), "got %v", err)
			assert.Nil(t, questions)
		})
	}
}

func TestSynthesizeProviderError(t *testing.T) {
	providerErr := errors.Join(llm.ErrProvider, errors.New("timeout"))
	synth := elicitation.NewSynthesizer(&stubLLM{err: providerErr}, nil, config.PromptPolicy{}, nil)

	_, err := synth.Synthesize(context.Background(), corpus.Assemble(acmeInputs()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrProvider))
}

func TestSynthesizeDedupesAndFilters(t *testing.T) {
	client := &stubLLM{object: `{"questions": [
		"What is the project start date?",
		"what is the project START date",
		"Please provide your target customers.",
		"When does the project begin?",
		"What is the total budget?"
	]}`}
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"What is the project start date?": {1, 0, 0},
		"When does the project begin?":    {0.99, 0.05, 0},
		"What is the total budget?":       {0, 1, 0},
	}}
	synth := elicitation.NewSynthesizer(client, embedder, config.DefaultPromptPolicy(), nil)

	questions, err := synth.Synthesize(context.Background(), corpus.Assemble(acmeInputs()))
	require.NoError(t, err)
	assert.Equal(t, elicitation.QuestionList{"What is the project start date?", "What is the total budget?"}, questions)
}

func TestSynthesizeProgramPolicy(t *testing.T) {
	client := &stubLLM{object: `{"questions": ["Describe your export markets in detail.", "What is the start date?"]}`}
	policy := config.PromptPolicy{
		ExcludedTopics: []string{"signatures"},
		Programs: map[string]config.ProgramPolicy{
			"innovate grant": {ExcludedTopics: []string{"export markets"}},
		},
	}
	synth := elicitation.NewSynthesizer(client, nil, policy, nil)

	questions, err := synth.Synthesize(context.Background(), corpus.Assemble(acmeInputs()))
	require.NoError(t, err)
	assert.Equal(t, elicitation.QuestionList{"What is the start date?"}, questions)
	assert.Contains(t, client.messages[1].Content, "- export markets")
}

func TestLoopBlockedWithoutForm(t *testing.T) {
	in := acmeInputs()
	in.ApplicationForm = nil
	src := &countingSource{questions: elicitation.QuestionList{"Q1?"}}

	loop := elicitation.NewLoop(corpus.Assemble(in), in.HasApplicationForm())
	assert.Equal(t, elicitation.StateBlocked, loop.State())

	err := loop.Start(context.Background(), src)
	assert.True(t, errors.Is(err, elicitation.ErrBlocked))
	assert.Zero(t, src.calls)

	_, err = loop.Present()
	assert.True(t, errors.Is(err, elicitation.ErrBlocked))
	assert.Equal(t, elicitation.BlockedReason, loop.Snapshot().BlockedReason)
}

func TestLoopRunsToComplete(t *testing.T) {
	client := &stubLLM{object: `{"questions": ["What is the project start date?", "How many staff will work on the project?"]}`}
	synth := elicitation.NewSynthesizer(client, nil, config.DefaultPromptPolicy(), nil)

	in := acmeInputs()
	loop := elicitation.NewLoop(corpus.Assemble(in), in.HasApplicationForm())
	require.Equal(t, elicitation.StateAwaitingFirstQuestion, loop.State())
	require.NoError(t, loop.Start(context.Background(), synth))

	q, err := loop.Present()
	require.NoError(t, err)
	assert.Equal(t, "What is the project start date?", q)
	assert.Equal(t, elicitation.StateAwaitingAnswer, loop.State())

	again, err := loop.Present()
	require.NoError(t, err)
	assert.Equal(t, q, again)
	assert.Len(t, loop.Transcript(), 2, "re-presenting must not open a second question")

	assert.True(t, errors.Is(loop.Answer("   "), elicitation.ErrEmptyAnswer))
	require.NoError(t, loop.Answer("1 March 2025"))
	assert.Equal(t, elicitation.StatePresenting, loop.State())
	assert.True(t, errors.Is(loop.Answer("too early"), elicitation.ErrInvalidTransition))

	_, err = loop.Present()
	require.NoError(t, err)
	require.NoError(t, loop.Answer("Four"))
	assert.Equal(t, elicitation.StateComplete, loop.State())

	transcript := loop.Transcript()
	require.Len(t, transcript, 5)
	assert.Equal(t, elicitation.SystemMessage(loop.Corpus()), transcript[0])
	roles := make([]string, 0, len(transcript))
	for _, m := range transcript {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{llm.RoleSystem, llm.RoleAssistant, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}, roles)
	assert.Len(t, loop.Conversation(), 4)

	_, err = loop.Present()
	assert.True(t, errors.Is(err, elicitation.ErrInvalidTransition))
	assert.True(t, errors.Is(loop.Start(context.Background(), synth), elicitation.ErrInvalidTransition))
}

func TestLoopEmptyQuestionListCompletes(t *testing.T) {
	in := acmeInputs()
	loop := elicitation.NewLoop(corpus.Assemble(in), true)
	require.NoError(t, loop.Start(context.Background(), &countingSource{}))
	assert.Equal(t, elicitation.StateComplete, loop.State())
}

func TestLoopResetDiscardsTranscript(t *testing.T) {
	src := &countingSource{questions: elicitation.QuestionList{"Q1?", "Q2?"}}
	in := acmeInputs()
	loop := elicitation.NewLoop(corpus.Assemble(in), true)
	require.NoError(t, loop.Start(context.Background(), src))
	_, _ = loop.Present()
	require.NoError(t, loop.Answer("A1"))

	in.Grant.Amount = "10,000"
	loop.Reset(corpus.Assemble(in), true)
	assert.Equal(t, elicitation.StateAwaitingFirstQuestion, loop.State())
	assert.Empty(t, loop.Transcript())
	assert.Contains(t, loop.Corpus().String(), "Amount Applying For: 10,000")
}

func TestStoreSerialisesSessionAccess(t *testing.T) {
	store := elicitation.NewStore()
	sess := store.Create("user-1", acmeInputs())
	src := &countingSource{questions: elicitation.QuestionList{"Q1?", "Q2?", "Q3?"}}

	ctx := context.Background()
	require.NoError(t, store.With(ctx, sess.ID, func(ctx context.Context, s *elicitation.Session) error {
		return s.Loop.Start(ctx, src)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.With(ctx, sess.ID, func(_ context.Context, s *elicitation.Session) error {
				_, err := s.Loop.Present()
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, store.With(ctx, sess.ID, func(_ context.Context, s *elicitation.Session) error {
		assert.Len(t, s.Loop.Conversation(), 1)
		return nil
	}))

	err := store.With(ctx, "missing", func(context.Context, *elicitation.Session) error { return nil })
	assert.True(t, errors.Is(err, elicitation.ErrSessionNotFound))
	assert.True(t, store.Delete(sess.ID))
	assert.Equal(t, 0, store.Len())
}

func TestSystemMessageEmbedsCorpusOnce(t *testing.T) {
	c := corpus.Assemble(acmeInputs())
	msg := elicitation.SystemMessage(c)
	assert.Equal(t, 1, strings.Count(msg.Content, c.String()))
}
