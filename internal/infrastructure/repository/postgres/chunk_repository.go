package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const chunkSelect = `
SELECT c.id, c.document_id, c.chunk_index, c.chunk_text, c.embedding
FROM policy_chunks c
JOIN policy_documents d ON d.id = c.document_id
WHERE d.plan_id = $1`

const chunkOrder = `
ORDER BY d.created_at, d.id, c.chunk_index`

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// InsertChunks appends one batch in a single transaction, so a failed batch
// leaves no partial rows behind.
func (r *ChunkRepository) InsertChunks(ctx context.Context, documentID string, chunks []domain.PolicyChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO policy_chunks (id, document_id, chunk_index, chunk_text, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`)
	if err != nil {
		return fmt.Errorf("prepare insert chunk: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.DocumentID != "" && chunk.DocumentID != documentID {
			return domain.WrapError(domain.ErrInvalidInput, "insert chunks", fmt.Errorf("chunk %d belongs to document %s", chunk.ChunkIndex, chunk.DocumentID))
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, documentID, chunk.ChunkIndex, chunk.ChunkText, pgvector.NewVector(chunk.Embedding), now,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert chunks tx: %w", err)
	}
	return nil
}

// ResetDocument deletes all chunks of the document and clears its processed
// flag atomically.
func (r *ChunkRepository) ResetDocument(ctx context.Context, documentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset document tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM policy_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE policy_documents
SET processed = FALSE, updated_at = $2
WHERE id = $1
`, documentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset document flag: %w", err)
	}
	if err := affectedOrNotFound(res, domain.ErrDocumentNotFound, "reset document", documentID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset document tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) FindChunksForPlan(ctx context.Context, planID string) ([]domain.PolicyChunk, error) {
	return r.queryChunks(ctx, chunkSelect+chunkOrder, planID)
}

// FindChunksForPlanMatching returns the plan's chunks whose text contains any
// of terms, case-insensitively. Terms are matched literally.
func (r *ChunkRepository) FindChunksForPlanMatching(ctx context.Context, planID string, terms []string) ([]domain.PolicyChunk, error) {
	clauses := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)+1)
	args = append(args, planID)
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		args = append(args, "%"+escapeLike(term)+"%")
		clauses = append(clauses, fmt.Sprintf(`c.chunk_text ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(clauses) == 0 {
		return []domain.PolicyChunk{}, nil
	}

	query := chunkSelect + "\n\tAND (" + strings.Join(clauses, " OR ") + ")" + chunkOrder
	return r.queryChunks(ctx, query, args...)
}

func (r *ChunkRepository) queryChunks(ctx context.Context, query string, args ...any) ([]domain.PolicyChunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plan chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PolicyChunk, 0)
	for rows.Next() {
		var chunk domain.PolicyChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.ChunkText, &embedding); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Embedding = embedding.Slice()
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrTemporary, "iterate chunks", err)
		}
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
