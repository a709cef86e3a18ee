package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaUsesAdvisoryLockAndVectorWidth(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("embedding vector(768) NOT NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db, 768); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	expectationsMet(t, mock)

	ddl := schemaDDL(768)
	for _, want := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"REFERENCES insurance_plans(id) ON DELETE CASCADE",
		"REFERENCES policy_documents(id) ON DELETE CASCADE",
		"UNIQUE (document_id, chunk_index)",
		"ADD COLUMN IF NOT EXISTS ingest_token TEXT",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}

func TestEnsureSchemaRejectsNonPositiveDimensions(t *testing.T) {
	db, _, done := newMockDB(t)
	defer done()

	if err := EnsureSchema(context.Background(), db, 0); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestPlanGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectQuery("SELECT id, company_name, plan_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewPlanRepository(db).GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func planRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "company_name", "plan_name", "description", "categories", "yearly_price_cents", "two_yearly_price_cents",
		"coverage_percentage", "deductible_cents", "coverage_description", "right_of_withdrawal", "generated_summary",
		"top_reasons", "is_active", "created_at", "updated_at",
	})
}

func TestPlanListActiveDecodesJSONLists(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM insurance_plans\\s+WHERE is_active").
		WillReturnRows(planRows().
			AddRow("plan-1", "Schutzbrief AG", "Basis", "", []byte(`["Smartphone","Tablet"]`), int64(6000), int64(0),
				80, int64(5000), "", "", "Guter Schutz", []byte(`["a","b"]`), true, now, now))

	plans, err := NewPlanRepository(db).ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d", len(plans))
	}
	p := plans[0]
	if len(p.Categories) != 2 || p.Categories[1] != "Tablet" || len(p.TopReasons) != 2 || p.CoveragePercentage != 80 {
		t.Fatalf("unexpected plan %+v", p)
	}
	expectationsMet(t, mock)
}

func TestPlanUpdateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("UPDATE insurance_plans").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPlanRepository(db).Update(context.Background(), &domain.InsurancePlan{ID: "missing"})
	if !domain.IsKind(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPlanSaveSummaryWritesReasonsAsJSON(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("UPDATE insurance_plans").
		WithArgs("plan-1", "Kurz.", []byte(`["a","b","c"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPlanRepository(db).SaveSummary(context.Background(), "plan-1", domain.PlanSummary{
		Summary:    "Kurz.",
		TopReasons: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("save summary: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPlanDeleteReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM insurance_plans WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewPlanRepository(db).Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectQuery("SELECT id, plan_id, file_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewDocumentRepository(db).GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentMarkProcessedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("UPDATE policy_documents\\s+SET processed = TRUE").
		WithArgs("missing", "tok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM policy_documents WHERE id = $1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := NewDocumentRepository(db).MarkProcessed(context.Background(), "missing", "tok")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentMarkProcessedRefusesLostClaim(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("UPDATE policy_documents\\s+SET processed = TRUE\\s+WHERE id = \\$1 AND ingest_token = \\$2").
		WithArgs("doc-1", "stale", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := NewDocumentRepository(db).MarkProcessed(context.Background(), "doc-1", "stale")
	if !domain.IsKind(err, domain.ErrIngestionInProgress) {
		t.Fatalf("expected ErrIngestionInProgress, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentClaimIngestionTakesFreeOrExpiredClaim(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("(ingest_token IS NULL OR ingest_token = $2 OR ingest_claimed_at < $4)")).
		WithArgs("doc-1", "tok", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewDocumentRepository(db).ClaimIngestion(context.Background(), "doc-1", "tok", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentClaimIngestionConflictsWithLiveClaim(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("SET ingest_token = \\$2, ingest_claimed_at = \\$3").
		WithArgs("doc-1", "tok", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := NewDocumentRepository(db).ClaimIngestion(context.Background(), "doc-1", "tok", time.Minute)
	if !domain.IsKind(err, domain.ErrIngestionInProgress) {
		t.Fatalf("expected ErrIngestionInProgress, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentClaimIngestionReportsMissingDocument(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("SET ingest_token = \\$2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := NewDocumentRepository(db).ClaimIngestion(context.Background(), "missing", "tok", time.Minute)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentReleaseIngestionOnlyClearsOwnClaim(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectExec("SET ingest_token = NULL, ingest_claimed_at = NULL\\s+WHERE id = \\$1 AND ingest_token = \\$2").
		WithArgs("doc-1", "tok").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewDocumentRepository(db).ReleaseIngestion(context.Background(), "doc-1", "tok"); err != nil {
		t.Fatalf("release: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDocumentListByPlanKeepsStoreOrder(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	now := time.Now().UTC()
	cols := []string{"id", "plan_id", "file_name", "storage_key", "storage_url", "size_bytes", "mime_type", "processed", "created_at", "updated_at"}
	mock.ExpectQuery("FROM policy_documents\\s+WHERE plan_id = \\$1\\s+ORDER BY created_at, id").
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("doc-1", "plan-1", "a.pdf", "k1", "", int64(10), "application/pdf", true, now, now).
			AddRow("doc-2", "plan-1", "b.pdf", "k2", "", int64(20), "application/pdf", false, now, now))

	docs, err := NewDocumentRepository(db).ListByPlan(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("list by plan: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-1" || !docs[0].Processed || docs[1].Processed {
		t.Fatalf("unexpected documents %+v", docs)
	}
	expectationsMet(t, mock)
}

func TestInsertChunksCommitsBatchInOneTransaction(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO policy_chunks")
	prep.ExpectExec().
		WithArgs("c-0", "doc-1", 0, "erster", pgvector.NewVector([]float32{1, 0}), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("c-1", "doc-1", 1, "zweiter", pgvector.NewVector([]float32{0.5, 0.5}), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewChunkRepository(db).InsertChunks(context.Background(), "doc-1", []domain.PolicyChunk{
		{ID: "c-0", DocumentID: "doc-1", ChunkIndex: 0, ChunkText: "erster", Embedding: []float32{1, 0}},
		{ID: "c-1", DocumentID: "doc-1", ChunkIndex: 1, ChunkText: "zweiter", Embedding: []float32{0.5, 0.5}},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInsertChunksRollsBackOnFailure(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO policy_chunks")
	prep.ExpectExec().WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := NewChunkRepository(db).InsertChunks(context.Background(), "doc-1", []domain.PolicyChunk{
		{ID: "c-0", ChunkIndex: 0, ChunkText: "x", Embedding: []float32{1}},
	})
	if err == nil {
		t.Fatal("expected insert error")
	}
	expectationsMet(t, mock)
}

func TestResetDocumentDeletesChunksAndClearsFlag(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM policy_chunks WHERE document_id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("UPDATE policy_documents\\s+SET processed = FALSE").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewChunkRepository(db).ResetDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("reset document: %v", err)
	}
	expectationsMet(t, mock)
}

func TestResetDocumentUnknownDocumentRollsBack(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM policy_chunks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE policy_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewChunkRepository(db).ResetDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindChunksForPlanDecodesEmbeddings(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectQuery("JOIN policy_documents d ON d.id = c.document_id\\s+WHERE d.plan_id = \\$1\\s+ORDER BY d.created_at, d.id, c.chunk_index").
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "chunk_index", "chunk_text", "embedding"}).
			AddRow("c-0", "doc-1", 0, "Diebstahl", "[1,0,0.5]"))

	chunks, err := NewChunkRepository(db).FindChunksForPlan(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("find chunks: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0].Embedding) != 3 || chunks[0].Embedding[2] != 0.5 {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	expectationsMet(t, mock)
}

func TestFindChunksForPlanMatchingEscapesTerms(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`AND (c.chunk_text ILIKE $2 ESCAPE '\' OR c.chunk_text ILIKE $3 ESCAPE '\')`)).
		WithArgs("plan-1", "%gestohlen%", `%100\%\_sicher%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "chunk_index", "chunk_text", "embedding"}))

	chunks, err := NewChunkRepository(db).FindChunksForPlanMatching(context.Background(), "plan-1", []string{"gestohlen", " ", "100%_sicher"})
	if err != nil {
		t.Fatalf("find matching chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	expectationsMet(t, mock)
}

func TestFindChunksForPlanMatchingWithoutTermsSkipsQuery(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()

	chunks, err := NewChunkRepository(db).FindChunksForPlanMatching(context.Background(), "plan-1", nil)
	if err != nil || len(chunks) != 0 {
		t.Fatalf("expected empty result, got %v %v", chunks, err)
	}
	expectationsMet(t, mock)
}
