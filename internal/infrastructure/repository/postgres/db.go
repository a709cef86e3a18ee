package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID int64 = 2026101601

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the plan, document and chunk tables. Chunk embeddings
// use a fixed-width pgvector column of embeddingDims.
func EnsureSchema(ctx context.Context, db *sql.DB, embeddingDims int) error {
	if embeddingDims <= 0 {
		return errors.New("embedding dimensions must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaDDL(embeddingDims)); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func schemaDDL(embeddingDims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS insurance_plans (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	plan_name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	categories JSONB NOT NULL DEFAULT '[]'::jsonb,
	yearly_price_cents BIGINT NOT NULL DEFAULT 0,
	two_yearly_price_cents BIGINT NOT NULL DEFAULT 0,
	coverage_percentage INTEGER NOT NULL CHECK (coverage_percentage BETWEEN 0 AND 100),
	deductible_cents BIGINT NOT NULL DEFAULT 0,
	coverage_description TEXT NOT NULL DEFAULT '',
	right_of_withdrawal TEXT NOT NULL DEFAULT '',
	generated_summary TEXT NOT NULL DEFAULT '',
	top_reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_documents (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL REFERENCES insurance_plans(id) ON DELETE CASCADE,
	file_name TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	storage_url TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	ingest_token TEXT,
	ingest_claimed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE policy_documents ADD COLUMN IF NOT EXISTS ingest_token TEXT;
ALTER TABLE policy_documents ADD COLUMN IF NOT EXISTS ingest_claimed_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_policy_documents_plan ON policy_documents(plan_id, created_at);

CREATE TABLE IF NOT EXISTS policy_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES policy_documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
	chunk_text TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, chunk_index)
);
`, embeddingDims)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func affectedOrNotFound(res sql.Result, kind error, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return notFoundError(kind, operation, id)
	}
	return nil
}
