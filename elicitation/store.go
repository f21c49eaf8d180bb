package elicitation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/grant-drafter/corpus"
)

// Session scopes one wizard submission: its inputs, the corpus assembled from
// them and the elicitation loop.
type Session struct {
	ID        string
	UserID    string
	Inputs    corpus.Inputs
	Loop      *Loop
	CreatedAt time.Time

	mu sync.Mutex
}

// Store keeps sessions in memory. Operations on one session are serialised,
// different sessions proceed independently.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create assembles the corpus for in and registers a fresh session.
func (s *Store) Create(userID string, in corpus.Inputs) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Inputs:    in,
		Loop:      NewLoop(corpus.Assemble(in), in.HasApplicationForm()),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Resubmit replaces the session's inputs and restarts elicitation against the
// newly assembled corpus. The previous questions and transcript are dropped.
// Call it from within With.
func (s *Session) Resubmit(in corpus.Inputs) {
	s.Inputs = in
	s.Loop.Reset(corpus.Assemble(in), in.HasApplicationForm())
}

// With runs fn while holding the session's lock.
func (s *Store) With(ctx context.Context, id string, fn func(context.Context, *Session) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(ctx, sess)
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Clear drops every session and reports how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
