package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/grant-drafter/embeddings"
)

// SQLiteApplicationStore is the single-node fallback used when no Postgres
// DSN is configured. Embeddings are stored as JSON and ranked in process.
type SQLiteApplicationStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteApplicationStore(db *sql.DB) *SQLiteApplicationStore {
	return &SQLiteApplicationStore{db: db, now: time.Now}
}

func (s *SQLiteApplicationStore) Save(ctx context.Context, app Application) (Application, error) {
	if s.db == nil {
		return Application{}, fmt.Errorf("sqlite database is nil")
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	var embedding sql.NullString
	if len(app.Embedding) > 0 {
		data, err := json.Marshal(app.Embedding)
		if err != nil {
			return Application{}, fmt.Errorf("marshal embedding: %w", err)
		}
		embedding = sql.NullString{String: string(data), Valid: true}
	}

	now := s.now().UTC().UnixNano()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO grant_applications (id, user_id, session_id, title, body, document_url, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET title = excluded.title,
		    body = excluded.body,
		    document_url = excluded.document_url,
		    embedding = excluded.embedding,
		    updated_at = excluded.updated_at
	`, app.ID, app.UserID, app.SessionID, app.Title, app.Body, app.DocumentURL, embedding, now, now); err != nil {
		return Application{}, fmt.Errorf("upsert application: %w", err)
	}

	var created, updated int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM grant_applications WHERE session_id = ?", app.SessionID,
	).Scan(&app.ID, &created, &updated); err != nil {
		return Application{}, fmt.Errorf("read stored application: %w", err)
	}
	app.CreatedAt = time.Unix(0, created).UTC()
	app.UpdatedAt = time.Unix(0, updated).UTC()
	return app, nil
}

func (s *SQLiteApplicationStore) ListByUser(ctx context.Context, userID string, limit int) ([]Application, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, session_id, title, body, document_url, embedding, created_at, updated_at
		FROM grant_applications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	return rows, nil
}

func (s *SQLiteApplicationStore) Similar(ctx context.Context, userID string, embedding []float32, limit int) ([]ScoredApplication, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}

	apps, err := s.query(ctx, `
		SELECT id, user_id, session_id, title, body, document_url, embedding, created_at, updated_at
		FROM grant_applications
		WHERE user_id = ? AND embedding IS NOT NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query similar applications: %w", err)
	}

	results := make([]ScoredApplication, 0, len(apps))
	for _, app := range apps {
		if len(app.Embedding) != len(embedding) {
			continue
		}
		results = append(results, ScoredApplication{Application: app, Score: embeddings.Cosine(embedding, app.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit = normalizeLimit(limit); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SQLiteApplicationStore) Clear(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("sqlite database is nil")
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM grant_applications")
	if err != nil {
		return 0, fmt.Errorf("clear applications: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteApplicationStore) query(ctx context.Context, query string, args ...any) ([]Application, error) {
	if s.db == nil {
		return nil, fmt.Errorf("sqlite database is nil")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]Application, 0)
	for rows.Next() {
		var (
			app              Application
			embedding        sql.NullString
			created, updated int64
		)
		if err := rows.Scan(&app.ID, &app.UserID, &app.SessionID, &app.Title, &app.Body, &app.DocumentURL, &embedding, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		if embedding.Valid {
			if err := json.Unmarshal([]byte(embedding.String), &app.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding: %w", err)
			}
		}
		app.CreatedAt = time.Unix(0, created).UTC()
		app.UpdatedAt = time.Unix(0, updated).UTC()
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

var _ ApplicationStore = (*SQLiteApplicationStore)(nil)
