// Package drafting turns a completed elicitation into a titled grant
// application and publishes it.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/llm"
)

const (
	// DefaultTitle is used when title extraction fails outright.
	DefaultTitle = "Untitled Grant"
	// UnknownTitle is what the model is told to answer when the corpus names
	// no grant.
	UnknownTitle = "Unknown Grant"

	draftTemperature = 0.7
)

// ErrGeneration wraps failures of the document generation call.
var ErrGeneration = errors.New("draft generation failed")

type Draft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Drafter is stateless; it holds only its collaborators.
type Drafter struct {
	llm        llm.Client
	titleModel string
	logger     *zap.Logger
}

// NewDrafter builds a drafter. titleModel overrides the client's default model
// for the title call when set.
func NewDrafter(client llm.Client, titleModel string, logger *zap.Logger) *Drafter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drafter{llm: client, titleModel: titleModel, logger: logger}
}

// Draft runs the title call then the document call. A failed title call falls
// back to DefaultTitle; a failed document call fails the draft.
func (d *Drafter) Draft(ctx context.Context, c corpus.Corpus, transcript []llm.Message) (Draft, error) {
	if d.llm == nil {
		return Draft{}, fmt.Errorf("llm client is not configured")
	}
	if c.Empty() {
		return Draft{}, fmt.Errorf("%w: corpus is empty", ErrGeneration)
	}

	title := d.Title(ctx, c)

	messages := make([]llm.Message, 0, len(transcript)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: writerSystemPrompt})
	for _, msg := range transcript {
		// The elicitation system message embeds the corpus, which is sent
		// below in full already.
		if msg.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, msg)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: fenced(draftInstruction, c.String())})

	body, err := d.llm.Generate(ctx, messages, llm.Params{Temperature: draftTemperature})
	if err != nil {
		d.logger.Error("application generation failed", zap.Error(err))
		return Draft{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Draft{}, fmt.Errorf("%w: model returned an empty document", ErrGeneration)
	}

	return Draft{Title: title, Body: body}, nil
}

// Title asks for the literal grant name at temperature 0 and keeps only the
// first line of the answer.
func (d *Drafter) Title(ctx context.Context, c corpus.Corpus) string {
	messages := []llm.Message{{Role: llm.RoleUser, Content: fenced(titleInstruction, c.String())}}

	raw, err := d.llm.Generate(ctx, messages, llm.Params{Model: d.titleModel, Temperature: 0})
	if err != nil {
		d.logger.Warn("title extraction failed", zap.Error(err))
		return DefaultTitle
	}
	if title := firstLine(raw); title != "" {
		return title
	}
	return DefaultTitle
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
