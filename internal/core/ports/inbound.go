package ports

import (
	"context"
	"io"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

// PlanService is the inbound contract for plan administration.
type PlanService interface {
	Create(ctx context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error)
	Get(ctx context.Context, id string) (*domain.InsurancePlan, error)
	Update(ctx context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error)
	Delete(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, planID string) ([]domain.PolicyDocument, error)
}

// PolicyUploader is the inbound contract for policy document upload orchestration.
type PolicyUploader interface {
	Upload(ctx context.Context, planID, filename, mimeType string, body io.Reader) (*domain.PolicyDocument, error)
}

// PolicyIngestor turns stored documents into embedded chunks.
type PolicyIngestor interface {
	IngestDocument(ctx context.Context, documentID string) (*domain.IngestionReport, error)
	ReingestPlan(ctx context.Context, planID string) (*domain.ReingestReport, error)
}

// PolicyRetriever is the inbound read model for similarity and hybrid search.
type PolicyRetriever interface {
	Search(ctx context.Context, params domain.SearchParams) ([]domain.SearchResult, error)
	HybridSearch(ctx context.Context, params domain.HybridSearchParams) ([]domain.SearchResult, error)
}

// PolicyAssistant answers questions and produces summaries grounded in policy text.
type PolicyAssistant interface {
	Ask(ctx context.Context, planID, question string, history []domain.ChatMessage) (*domain.Answer, error)
	Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.SearchResult, error)
	ProductSummary(ctx context.Context, planID, productName, category string) (*domain.ProductSummary, error)
	RegeneratePlanSummary(ctx context.Context, planID string) (*domain.PlanSummary, error)
}

// Recommender ranks plans for a product.
type Recommender interface {
	Recommend(ctx context.Context, category string, productPriceCents int64) ([]domain.Recommendation, error)
}
