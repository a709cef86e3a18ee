package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

const (
	DefaultEmbeddingBatchSize = 20
	DefaultClaimLease         = 30 * time.Minute
)

type planSummaryRefresher interface {
	RegeneratePlanSummary(ctx context.Context, planID string) (*domain.PlanSummary, error)
}

type IngestPolicyUseCase struct {
	plans     ports.PlanRepository
	docs      ports.PolicyDocumentRepository
	chunks    ports.ChunkStore
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder

	batchSize  int
	dimensions int
	claimLease time.Duration
	summaries  planSummaryRefresher
	observer   ports.IngestionObserver
}

type IngestOption func(*IngestPolicyUseCase)

// WithEmbeddingBatchSize sets how many chunks go into one embedding call.
func WithEmbeddingBatchSize(n int) IngestOption {
	return func(uc *IngestPolicyUseCase) {
		if n > 0 {
			uc.batchSize = n
		}
	}
}

// WithEmbeddingDimensions rejects provider vectors of any other length.
func WithEmbeddingDimensions(n int) IngestOption {
	return func(uc *IngestPolicyUseCase) { uc.dimensions = n }
}

// WithClaimLease sets how long an ingestion claim outlives a run that stopped
// renewing it.
func WithClaimLease(d time.Duration) IngestOption {
	return func(uc *IngestPolicyUseCase) {
		if d > 0 {
			uc.claimLease = d
		}
	}
}

func WithSummaryRefresher(r planSummaryRefresher) IngestOption {
	return func(uc *IngestPolicyUseCase) { uc.summaries = r }
}

func WithIngestionObserver(o ports.IngestionObserver) IngestOption {
	return func(uc *IngestPolicyUseCase) { uc.observer = o }
}

func NewIngestPolicyUseCase(
	plans ports.PlanRepository,
	docs ports.PolicyDocumentRepository,
	chunks ports.ChunkStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	opts ...IngestOption,
) *IngestPolicyUseCase {
	uc := &IngestPolicyUseCase{
		plans:      plans,
		docs:       docs,
		chunks:     chunks,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		batchSize:  DefaultEmbeddingBatchSize,
		claimLease: DefaultClaimLease,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// IngestDocument extracts, chunks, embeds and stores one unprocessed
// document, then refreshes its plan summary. On failure the document is left
// unprocessed without chunks. Only one run at a time may ingest a document;
// a concurrent attempt fails with ErrIngestionInProgress and changes nothing.
func (uc *IngestPolicyUseCase) IngestDocument(ctx context.Context, documentID string) (*domain.IngestionReport, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("document id is required"))
	}

	token := uuid.NewString()
	if err := uc.docs.ClaimIngestion(ctx, documentID, token, uc.claimLease); err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}
	defer uc.releaseClaim(ctx, documentID, token)

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Processed {
		return nil, domain.WrapError(domain.ErrAlreadyProcessed, "ingest document", fmt.Errorf("document %s", doc.ID))
	}

	report, err := uc.ingest(ctx, doc, token)
	if err != nil {
		return nil, err
	}

	uc.refreshSummary(ctx, doc.PlanID)
	return report, nil
}

// ReingestPlan resets every document of the plan and ingests them one after
// another. It stops at the first failure; documents not reached stay
// unprocessed and can be ingested individually. Every document is claimed
// before anything is reset, so a plan with a document mid-ingestion is
// refused as a whole.
func (uc *IngestPolicyUseCase) ReingestPlan(ctx context.Context, planID string) (*domain.ReingestReport, error) {
	if _, err := uc.plans.GetByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	docs, err := uc.docs.ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reingest plan", errors.New("plan has no documents"))
	}

	token := uuid.NewString()
	claimed := make([]string, 0, len(docs))
	defer func() {
		for _, id := range claimed {
			uc.releaseClaim(ctx, id, token)
		}
	}()
	for _, doc := range docs {
		if err := uc.docs.ClaimIngestion(ctx, doc.ID, token, uc.claimLease); err != nil {
			return nil, fmt.Errorf("claim document %s: %w", doc.ID, err)
		}
		claimed = append(claimed, doc.ID)
	}

	for _, doc := range docs {
		if err := uc.chunks.ResetDocument(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("reset document %s: %w", doc.ID, err)
		}
	}

	report := &domain.ReingestReport{PlanID: planID, Documents: make([]domain.IngestionReport, 0, len(docs))}
	for i := range docs {
		docReport, err := uc.ingest(ctx, &docs[i], token)
		if err != nil {
			return report, fmt.Errorf("reingest document %s: %w", docs[i].ID, err)
		}
		report.Documents = append(report.Documents, *docReport)
	}

	uc.refreshSummary(ctx, planID)
	return report, nil
}

func (uc *IngestPolicyUseCase) ingest(ctx context.Context, doc *domain.PolicyDocument, token string) (*domain.IngestionReport, error) {
	report, err := uc.pipeline(ctx, doc, token)
	if err == nil {
		return report, nil
	}

	cleanupCtx := context.WithoutCancel(ctx)
	// chunks belong to whoever holds the claim; never reset someone else's run
	if claimErr := uc.docs.ClaimIngestion(cleanupCtx, doc.ID, token, uc.claimLease); claimErr != nil {
		return nil, err
	}
	if resetErr := uc.chunks.ResetDocument(cleanupCtx, doc.ID); resetErr != nil {
		return nil, fmt.Errorf("%w; reset document: %v", err, resetErr)
	}
	return nil, err
}

func (uc *IngestPolicyUseCase) pipeline(ctx context.Context, doc *domain.PolicyDocument, token string) (*domain.IngestionReport, error) {
	started := time.Now()

	if err := uc.renewClaim(ctx, doc.ID, token); err != nil {
		return nil, err
	}
	// drop leftovers of an interrupted earlier run
	if err := uc.chunks.ResetDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	pieces := uc.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyText, "chunk document", errors.New("chunking produced zero chunks"))
	}

	batches := 0
	for start := 0; start < len(pieces); start += uc.batchSize {
		end := min(start+uc.batchSize, len(pieces))
		if err := uc.renewClaim(ctx, doc.ID, token); err != nil {
			return nil, err
		}
		if err := uc.embedAndStore(ctx, doc.ID, pieces[start:end]); err != nil {
			return nil, fmt.Errorf("batch %d: %w", batches, err)
		}
		batches++
		slog.Debug("ingest_batch_committed",
			"document_id", doc.ID,
			"batch", batches,
			"chunks", end-start,
		)
	}

	if err := uc.docs.MarkProcessed(ctx, doc.ID, token); err != nil {
		return nil, fmt.Errorf("mark document processed: %w", err)
	}

	return &domain.IngestionReport{
		DocumentID: doc.ID,
		Chunks:     len(pieces),
		Batches:    batches,
		Duration:   time.Since(started),
	}, nil
}

func (uc *IngestPolicyUseCase) renewClaim(ctx context.Context, documentID, token string) error {
	if err := uc.docs.ClaimIngestion(ctx, documentID, token, uc.claimLease); err != nil {
		return fmt.Errorf("renew claim: %w", err)
	}
	return nil
}

func (uc *IngestPolicyUseCase) releaseClaim(ctx context.Context, documentID, token string) {
	if err := uc.docs.ReleaseIngestion(context.WithoutCancel(ctx), documentID, token); err != nil {
		slog.Warn("ingest_claim_release_failed",
			"document_id", documentID,
			"error", err.Error(),
		)
	}
}

func (uc *IngestPolicyUseCase) extractText(ctx context.Context, doc *domain.PolicyDocument) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrEmptyText, "extract text", fmt.Errorf("document %s", doc.ID))
	}
	return text, nil
}

func (uc *IngestPolicyUseCase) embedAndStore(ctx context.Context, documentID string, pieces []domain.TextChunk) (err error) {
	if uc.observer != nil {
		started := time.Now()
		defer func() { uc.observer.ObserveEmbeddingBatch(len(pieces), time.Since(started), err) }()
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := uc.validateVectors(vectors, len(texts)); err != nil {
		return err
	}

	batch := make([]domain.PolicyChunk, len(pieces))
	for i, p := range pieces {
		batch[i] = domain.PolicyChunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: p.Index,
			ChunkText:  p.Text,
			Embedding:  vectors[i],
		}
	}
	if err := uc.chunks.InsertChunks(ctx, documentID, batch); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

func (uc *IngestPolicyUseCase) validateVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return domain.WrapError(domain.ErrProvider, "embed chunks", fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), want))
	}
	for i, v := range vectors {
		if len(v) == 0 || (uc.dimensions > 0 && len(v) != uc.dimensions) {
			return domain.WrapError(domain.ErrProvider, "embed chunks", fmt.Errorf("vector %d has %d dimensions", i, len(v)))
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return domain.WrapError(domain.ErrProvider, "embed chunks", fmt.Errorf("vector %d is not finite", i))
			}
		}
	}
	return nil
}

func (uc *IngestPolicyUseCase) refreshSummary(ctx context.Context, planID string) {
	if uc.summaries == nil {
		return
	}
	if _, err := uc.summaries.RegeneratePlanSummary(ctx, planID); err != nil {
		slog.Warn("plan_summary_refresh_failed",
			"plan_id", planID,
			"error", err.Error(),
		)
	}
}
