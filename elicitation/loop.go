package elicitation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/llm"
)

// Loop is the per-session elicitation state machine:
//
//	AwaitingFirstQuestion -> Presenting(0) -> AwaitingAnswer(0) -> Presenting(1) -> ... -> Complete
//
// At most one question is open at a time and the transcript only grows. A
// loop created without an application form is Blocked for good. Loop is not
// safe for concurrent use; Store serialises access per session.
type Loop struct {
	corpus     corpus.Corpus
	state      State
	questions  QuestionList
	index      int
	transcript []llm.Message
	blocked    string
}

// NewLoop prepares a loop over c. formSupplied reports whether any
// application form source (file or link) was provided.
func NewLoop(c corpus.Corpus, formSupplied bool) *Loop {
	l := &Loop{corpus: c}
	if !formSupplied {
		l.state = StateBlocked
		l.blocked = BlockedReason
	}
	return l
}

// Start synthesizes the question list. It is the only operation that calls
// the model and runs once per loop; Blocked loops return ErrBlocked without
// calling src.
func (l *Loop) Start(ctx context.Context, src QuestionSource) error {
	switch l.state {
	case StateBlocked:
		return fmt.Errorf("%w: %s", ErrBlocked, l.blocked)
	case StateAwaitingFirstQuestion:
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, l.state)
	}

	questions, err := src.Synthesize(ctx, l.corpus)
	if err != nil {
		return err
	}

	l.questions = append(QuestionList(nil), questions...)
	l.transcript = []llm.Message{SystemMessage(l.corpus)}
	l.index = 0
	if len(l.questions) == 0 {
		l.state = StateComplete
		return nil
	}
	l.state = StatePresenting
	return nil
}

// Present opens the current question and records it as an assistant message.
// Calling it again while the question is open returns the same question
// without touching the transcript.
func (l *Loop) Present() (string, error) {
	switch l.state {
	case StatePresenting:
		q := l.questions[l.index]
		l.transcript = append(l.transcript, llm.Message{Role: llm.RoleAssistant, Content: q})
		l.state = StateAwaitingAnswer
		return q, nil
	case StateAwaitingAnswer:
		return l.questions[l.index], nil
	case StateBlocked:
		return "", fmt.Errorf("%w: %s", ErrBlocked, l.blocked)
	default:
		return "", fmt.Errorf("%w: present from %s", ErrInvalidTransition, l.state)
	}
}

// Answer records a non-empty answer to the open question and advances.
func (l *Loop) Answer(text string) error {
	if l.state == StateBlocked {
		return fmt.Errorf("%w: %s", ErrBlocked, l.blocked)
	}
	if l.state != StateAwaitingAnswer {
		return fmt.Errorf("%w: answer from %s", ErrInvalidTransition, l.state)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnswer
	}

	l.transcript = append(l.transcript, llm.Message{Role: llm.RoleUser, Content: text})
	l.index++
	if l.index >= len(l.questions) {
		l.state = StateComplete
		return nil
	}
	l.state = StatePresenting
	return nil
}

// Reset discards the transcript and questions and restarts against a new
// corpus. Partial transcripts are never carried over.
func (l *Loop) Reset(c corpus.Corpus, formSupplied bool) {
	*l = *NewLoop(c, formSupplied)
}

func (l *Loop) State() State {
	return l.state
}

// Index is the position of the current question; it equals the number of
// answered questions.
func (l *Loop) Index() int {
	return l.index
}

func (l *Loop) Questions() QuestionList {
	return append(QuestionList(nil), l.questions...)
}

func (l *Loop) Corpus() corpus.Corpus {
	return l.corpus
}

func (l *Loop) BlockedReason() string {
	return l.blocked
}

// Transcript returns a copy of the full transcript, system message first.
func (l *Loop) Transcript() []llm.Message {
	return append([]llm.Message(nil), l.transcript...)
}

// Conversation is the transcript without the system message, the part a
// client is shown.
func (l *Loop) Conversation() []llm.Message {
	if len(l.transcript) == 0 {
		return nil
	}
	return append([]llm.Message(nil), l.transcript[1:]...)
}

// Snapshot is a read-only view of a loop for transport.
type Snapshot struct {
	State           State         `json:"state"`
	Index           int           `json:"index"`
	Total           int           `json:"total"`
	CurrentQuestion string        `json:"current_question,omitempty"`
	BlockedReason   string        `json:"blocked_reason,omitempty"`
	Conversation    []llm.Message `json:"conversation"`
}

func (l *Loop) Snapshot() Snapshot {
	snap := Snapshot{
		State:         l.state,
		Index:         l.index,
		Total:         len(l.questions),
		BlockedReason: l.blocked,
		Conversation:  l.Conversation(),
	}
	if l.state == StateAwaitingAnswer || l.state == StatePresenting {
		snap.CurrentQuestion = l.questions[l.index]
	}
	return snap
}
