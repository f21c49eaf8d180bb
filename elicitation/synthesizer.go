package elicitation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/embeddings"
	"github.com/fabfab/grant-drafter/llm"
)

const defaultDuplicateThreshold = 0.92

var questionSchema = llm.StringList("question_list", "questions", "Outstanding application form questions, one per entry.")

// QuestionSource is what the elicitation loop needs from a synthesizer.
type QuestionSource interface {
	Synthesize(ctx context.Context, c corpus.Corpus) (QuestionList, error)
}

type Synthesizer struct {
	llm      llm.Client
	embedder embeddings.Embedder
	policy   config.PromptPolicy
	logger   *zap.Logger

	// DuplicateThreshold is the cosine similarity at or above which two
	// questions count as the same when an embedder is configured.
	DuplicateThreshold float64
}

// NewSynthesizer builds a synthesizer. embedder may be nil, in which case only
// textual duplicates are removed.
func NewSynthesizer(client llm.Client, embedder embeddings.Embedder, policy config.PromptPolicy, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(policy.ExcludedTopics) == 0 {
		policy.ExcludedTopics = config.DefaultPromptPolicy().ExcludedTopics
	}
	return &Synthesizer{
		llm:                client,
		embedder:           embedder,
		policy:             policy,
		logger:             logger,
		DuplicateThreshold: defaultDuplicateThreshold,
	}
}

// Synthesize makes one structured completion at temperature 0 and returns the
// validated, de-duplicated and filtered question list. A malformed response
// fails with ErrValidation; nothing is salvaged from it.
func (s *Synthesizer) Synthesize(ctx context.Context, c corpus.Corpus) (QuestionList, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("llm client is not configured")
	}

	program := c.Field(corpus.LabelGrant, "Program")
	excluded := s.policy.TopicsFor(program)

	messages := []llm.Message{
		SystemMessage(c),
		{Role: llm.RoleUser, Content: synthesisInstruction(excluded)},
	}

	raw, err := s.llm.GenerateObject(ctx, messages, questionSchema, llm.Params{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("synthesize questions: %w", err)
	}

	questions, err := decodeQuestions(raw)
	if err != nil {
		s.logger.Error("question synthesis response rejected", zap.Error(err))
		return nil, err
	}

	questions = dedupeExact(questions)
	questions = filterExcluded(questions, excluded)
	questions = s.dedupeSemantic(ctx, questions)

	s.logger.Info("questions synthesized",
		zap.String("program", program),
		zap.Int("count", len(questions)),
	)
	return questions, nil
}

type questionPayload struct {
	Questions *[]string `json:"questions"`
}

func decodeQuestions(raw json.RawMessage) (QuestionList, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var payload questionPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode questions: %w", ErrValidation, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after questions object", ErrValidation)
	}
	if payload.Questions == nil {
		return nil, fmt.Errorf("%w: missing questions field", ErrValidation)
	}

	out := make(QuestionList, 0, len(*payload.Questions))
	for i, q := range *payload.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrValidation, i)
		}
		out = append(out, q)
	}
	return out, nil
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

func questionKey(q string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(q), " "))
}

func dedupeExact(questions QuestionList) QuestionList {
	seen := make(map[string]struct{}, len(questions))
	out := make(QuestionList, 0, len(questions))
	for _, q := range questions {
		key := questionKey(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// filterExcluded drops questions that name an excluded topic outright. Only
// multi-word phrases are matched; single words like "sector" are left to the
// prompt since they appear in legitimate questions.
func filterExcluded(questions QuestionList, topics []string) QuestionList {
	phrases := topicPhrases(topics)
	out := make(QuestionList, 0, len(questions))
	for _, q := range questions {
		key := " " + questionKey(q) + " "
		excluded := false
		for _, phrase := range phrases {
			if strings.Contains(key, " "+phrase+" ") {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, q)
		}
	}
	return out
}

var parenthetical = regexp.MustCompile(`\([^)]*\)`)

func topicPhrases(topics []string) []string {
	var phrases []string
	for _, topic := range topics {
		topic = parenthetical.ReplaceAllString(strings.ToLower(topic), "")
		for _, part := range strings.Split(topic, " or ") {
			key := questionKey(part)
			if strings.Count(key, " ") >= 1 {
				phrases = append(phrases, key)
			}
		}
	}
	return phrases
}

// dedupeSemantic removes near-duplicates by embedding similarity. Embedding
// failures keep the list as is.
func (s *Synthesizer) dedupeSemantic(ctx context.Context, questions QuestionList) QuestionList {
	if s.embedder == nil || len(questions) < 2 {
		return questions
	}

	vectors, err := s.embedder.Embed(ctx, questions)
	if err != nil || len(vectors) != len(questions) {
		s.logger.Warn("semantic question dedupe skipped", zap.Error(err))
		return questions
	}

	out := make(QuestionList, 0, len(questions))
	kept := make([][]float32, 0, len(questions))
	for i, q := range questions {
		duplicate := false
		for _, v := range kept {
			if embeddings.Cosine(vectors[i], v) >= s.DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			s.logger.Debug("dropping near-duplicate question", zap.String("question", q))
			continue
		}
		kept = append(kept, vectors[i])
		out = append(out, q)
	}
	return out
}
