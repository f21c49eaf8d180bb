package database

import (
	"context"
	"time"
)

const defaultListLimit = 50

// Application is one persisted draft. There is at most one per elicitation
// session; regenerating a draft replaces the row.
type Application struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	DocumentURL string    `json:"document_url"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ScoredApplication struct {
	Application
	Score float64 `json:"score"`
}

type ApplicationStore interface {
	// Save inserts or replaces the application for app.SessionID and returns
	// the stored row.
	Save(ctx context.Context, app Application) (Application, error)
	// ListByUser returns the user's applications, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Application, error)
	// Similar ranks the user's applications by embedding similarity.
	Similar(ctx context.Context, userID string, embedding []float32, limit int) ([]ScoredApplication, error)
	// Clear removes every application and reports how many were deleted.
	Clear(ctx context.Context) (int64, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
