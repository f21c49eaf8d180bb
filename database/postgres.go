package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresApplicationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresApplicationStore(pool *pgxpool.Pool) *PostgresApplicationStore {
	return &PostgresApplicationStore{pool: pool}
}

func (s *PostgresApplicationStore) Save(ctx context.Context, app Application) (Application, error) {
	if s.pool == nil {
		return Application{}, fmt.Errorf("postgres pool is nil")
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	var embedding any
	if len(app.Embedding) > 0 {
		embedding = pgvector.NewVector(app.Embedding)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO grant_applications (id, user_id, session_id, title, body, document_url, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
		ON CONFLICT (session_id) DO UPDATE
		SET title = EXCLUDED.title,
		    body = EXCLUDED.body,
		    document_url = EXCLUDED.document_url,
		    embedding = EXCLUDED.embedding,
		    updated_at = NOW()
		RETURNING id::text, created_at, updated_at
	`, app.ID, app.UserID, app.SessionID, app.Title, app.Body, app.DocumentURL, embedding)

	if err := row.Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return Application{}, fmt.Errorf("upsert application: %w", err)
	}
	return app, nil
}

func (s *PostgresApplicationStore) ListByUser(ctx context.Context, userID string, limit int) ([]Application, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, session_id, title, body, COALESCE(document_url, ''), created_at, updated_at
		FROM grant_applications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Application, error) {
		var app Application
		err := row.Scan(&app.ID, &app.UserID, &app.SessionID, &app.Title, &app.Body, &app.DocumentURL, &app.CreatedAt, &app.UpdatedAt)
		return app, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan applications: %w", err)
	}
	return apps, nil
}

func (s *PostgresApplicationStore) Similar(ctx context.Context, userID string, embedding []float32, limit int) ([]ScoredApplication, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, session_id, title, body, COALESCE(document_url, ''), created_at, updated_at,
		       (embedding <=> $2::vector) AS distance
		FROM grant_applications
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3
	`, userID, pgvector.NewVector(embedding), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query similar applications: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredApplication, 0)
	for rows.Next() {
		var item ScoredApplication
		var distance float64
		if scanErr := rows.Scan(&item.ID, &item.UserID, &item.SessionID, &item.Title, &item.Body, &item.DocumentURL, &item.CreatedAt, &item.UpdatedAt, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar application: %w", scanErr)
		}
		item.Score = 1 - distance
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func (s *PostgresApplicationStore) Clear(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM grant_applications")
	if err != nil {
		return 0, fmt.Errorf("clear applications: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ ApplicationStore = (*PostgresApplicationStore)(nil)
