package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const documentColumns = `id, plan_id, file_name, storage_key, storage_url, size_bytes, mime_type, processed, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.PolicyDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO policy_documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.PlanID, doc.FileName, doc.StorageKey, doc.StorageURL, doc.SizeBytes, doc.MimeType,
		doc.Processed, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.PolicyDocument, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM policy_documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError(domain.ErrDocumentNotFound, "get document", id)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByPlan(ctx context.Context, planID string) ([]domain.PolicyDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM policy_documents
WHERE plan_id = $1
ORDER BY created_at, id
`, planID)
	if err != nil {
		return nil, fmt.Errorf("query plan documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PolicyDocument, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// ClaimIngestion takes over a free or expired claim, or renews one already
// held under token.
func (r *DocumentRepository) ClaimIngestion(ctx context.Context, id, token string, lease time.Duration) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE policy_documents
SET ingest_token = $2, ingest_claimed_at = $3
WHERE id = $1
  AND (ingest_token IS NULL OR ingest_token = $2 OR ingest_claimed_at < $4)
`, id, token, now, now.Add(-lease))
	if err != nil {
		return fmt.Errorf("claim document ingestion: %w", err)
	}
	return r.heldOrConflict(ctx, res, "claim document ingestion", id)
}

func (r *DocumentRepository) ReleaseIngestion(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE policy_documents
SET ingest_token = NULL, ingest_claimed_at = NULL
WHERE id = $1 AND ingest_token = $2
`, id, token)
	if err != nil {
		return fmt.Errorf("release document ingestion: %w", err)
	}
	return nil
}

// MarkProcessed is idempotent for the claim holder.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id, token string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE policy_documents
SET processed = TRUE, updated_at = $3
WHERE id = $1 AND ingest_token = $2
`, id, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	return r.heldOrConflict(ctx, res, "mark document processed", id)
}

// heldOrConflict tells a missing document apart from a claim held by
// someone else when a fenced update touched no rows.
func (r *DocumentRepository) heldOrConflict(ctx context.Context, res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM policy_documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: check document: %w", operation, err)
	}
	if !exists {
		return notFoundError(domain.ErrDocumentNotFound, operation, id)
	}
	return domain.WrapError(domain.ErrIngestionInProgress, operation, fmt.Errorf("id=%s claimed by another run", id))
}

func scanDocument(row rowScanner) (*domain.PolicyDocument, error) {
	var doc domain.PolicyDocument
	err := row.Scan(
		&doc.ID, &doc.PlanID, &doc.FileName, &doc.StorageKey, &doc.StorageURL, &doc.SizeBytes, &doc.MimeType,
		&doc.Processed, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
