package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func EnsureApplicationSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS grant_applications (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			document_url TEXT,
			embedding VECTOR(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_grant_applications_user ON grant_applications(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_grant_applications_embedding ON grant_applications USING hnsw (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite database is nil")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS grant_applications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			document_url TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_grant_applications_user ON grant_applications(user_id, created_at DESC)",
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute sqlite schema statement: %w", err)
		}
	}
	return nil
}
