// Package elicitation turns a corpus into follow-up questions and walks the
// user through them one at a time.
package elicitation

import (
	"errors"
)

var (
	// ErrValidation means the model response did not match the expected shape.
	ErrValidation = errors.New("model response failed validation")
	// ErrBlocked means elicitation cannot start because no application form
	// source was supplied.
	ErrBlocked = errors.New("elicitation blocked")
	// ErrInvalidTransition is returned when an operation does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("invalid elicitation transition")
	ErrEmptyAnswer       = errors.New("answer cannot be empty")
	ErrSessionNotFound   = errors.New("session not found")
)

// BlockedReason is shown to the user when no application form was supplied.
const BlockedReason = "No application form provided. Upload the grant application form or link to it before continuing."

type State int

const (
	StateAwaitingFirstQuestion State = iota
	StatePresenting
	StateAwaitingAnswer
	StateComplete
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstQuestion:
		return "awaiting_first_question"
	case StatePresenting:
		return "presenting"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateComplete:
		return "complete"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// QuestionList is the ordered, de-duplicated output of one synthesis call.
type QuestionList []string
