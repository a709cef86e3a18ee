package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

// PlanRepository persists insurance plans.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.InsurancePlan) error
	GetByID(ctx context.Context, id string) (*domain.InsurancePlan, error)
	Update(ctx context.Context, plan *domain.InsurancePlan) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]domain.InsurancePlan, error)
	SaveSummary(ctx context.Context, id string, summary domain.PlanSummary) error
}

// PolicyDocumentRepository persists uploaded policy documents and their processed flag.
type PolicyDocumentRepository interface {
	Create(ctx context.Context, doc *domain.PolicyDocument) error
	GetByID(ctx context.Context, id string) (*domain.PolicyDocument, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.PolicyDocument, error)
	// ClaimIngestion grants the holder of token exclusive ingestion rights
	// until lease elapses. Claiming again with the same token renews the
	// lease; a live claim under another token yields ErrIngestionInProgress.
	ClaimIngestion(ctx context.Context, id, token string, lease time.Duration) error
	ReleaseIngestion(ctx context.Context, id, token string) error
	// MarkProcessed sets the processed flag only while token holds the claim.
	MarkProcessed(ctx context.Context, id, token string) error
}

// ChunkStore persists embedded chunks and serves plan-scoped scans.
type ChunkStore interface {
	InsertChunks(ctx context.Context, documentID string, chunks []domain.PolicyChunk) error
	// ResetDocument removes every chunk of the document and clears its
	// processed flag in one transaction.
	ResetDocument(ctx context.Context, documentID string) error
	FindChunksForPlan(ctx context.Context, planID string) ([]domain.PolicyChunk, error)
	FindChunksForPlanMatching(ctx context.Context, planID string, terms []string) ([]domain.PolicyChunk, error)
}

// ObjectStorage stores uploaded policy files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishIngestion(ctx context.Context, event domain.IngestionEvent) error
	SubscribeIngestion(ctx context.Context, handler func(context.Context, domain.IngestionEvent) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.PolicyDocument) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into overlapping, sentence-aligned chunks.
type Chunker interface {
	Split(text string) []domain.TextChunk
}

// Vocabulary holds the keyword list and synonym table used by hybrid retrieval.
type Vocabulary interface {
	ExpandQuery(query string) string
	KeywordTerms(query string) []string
}

// PolicyGenerator produces customer-facing text from retrieved passages.
type PolicyGenerator interface {
	AnswerQuestion(ctx context.Context, plan domain.InsurancePlan, question string, history []domain.ChatMessage, passages []domain.SearchResult) (string, error)
	SummarizePlan(ctx context.Context, plan domain.InsurancePlan, passages []string) (domain.PlanSummary, error)
	SummarizeProduct(ctx context.Context, plan domain.InsurancePlan, productName, category string, passages []domain.SearchResult) (domain.ProductSummary, error)
}

// IngestionObserver receives per-batch ingestion progress.
type IngestionObserver interface {
	ObserveEmbeddingBatch(size int, duration time.Duration, err error)
}
