package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

// NoInformationAnswer is returned instead of a generated answer when
// retrieval finds no policy passage for the question.
const NoInformationAnswer = "Dazu konnte ich in den Versicherungsbedingungen leider keine Informationen finden. " +
	"Bitte wende dich für Details an den Kundenservice."

const maxTopReasons = 3

type AssistantConfig struct {
	SearchTopK          int
	AnswerTopK          int
	ProductSummaryTopK  int
	SummaryChunkLimit   int
	// nil selects domain.DefaultSimilarityThreshold; any other value,
	// zero and negatives included, applies as given.
	SimilarityThreshold *float64
}

func (c AssistantConfig) withDefaults() AssistantConfig {
	if c.SearchTopK <= 0 {
		c.SearchTopK = domain.DefaultSearchTopK
	}
	if c.AnswerTopK <= 0 {
		c.AnswerTopK = domain.DefaultAnswerTopK
	}
	if c.ProductSummaryTopK <= 0 {
		c.ProductSummaryTopK = domain.DefaultProductSummaryTopK
	}
	if c.SummaryChunkLimit <= 0 {
		c.SummaryChunkLimit = domain.DefaultSummaryChunkLimit
	}
	threshold := domain.DefaultSimilarityThreshold
	if c.SimilarityThreshold != nil {
		threshold = *c.SimilarityThreshold
	}
	c.SimilarityThreshold = &threshold
	return c
}

type AssistantUseCase struct {
	plans     ports.PlanRepository
	chunks    ports.ChunkStore
	embedder  ports.Embedder
	retriever ports.PolicyRetriever
	vocab     ports.Vocabulary
	generator ports.PolicyGenerator
	cfg       AssistantConfig
}

func NewAssistantUseCase(
	plans ports.PlanRepository,
	chunks ports.ChunkStore,
	embedder ports.Embedder,
	retriever ports.PolicyRetriever,
	vocab ports.Vocabulary,
	generator ports.PolicyGenerator,
	cfg AssistantConfig,
) *AssistantUseCase {
	return &AssistantUseCase{
		plans:     plans,
		chunks:    chunks,
		embedder:  embedder,
		retriever: retriever,
		vocab:     vocab,
		generator: generator,
		cfg:       cfg.withDefaults(),
	}
}

// Ask answers a customer question from the plan's policy passages. Without
// any retrieved passage the generator is not called.
func (uc *AssistantUseCase) Ask(ctx context.Context, planID, question string, history []domain.ChatMessage) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	plan, err := uc.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	results, err := uc.retrieve(ctx, domain.RetrieveRequest{
		PlanID: plan.ID,
		Query:  question,
		TopK:   uc.cfg.AnswerTopK,
		Hybrid: true,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.Answer{Text: NoInformationAnswer, Grounded: false, Sources: []domain.SearchResult{}}, nil
	}

	text, err := uc.generator.AnswerQuestion(ctx, *plan, question, history, results)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:     text,
		Grounded: true,
		Sources:  results,
	}, nil
}

func (uc *AssistantUseCase) Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}
	if _, err := uc.plans.GetByID(ctx, req.PlanID); err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}
	return uc.retrieve(ctx, req)
}

// ProductSummary explains why the plan fits a product, based on the
// coverage passages closest to the product category.
func (uc *AssistantUseCase) ProductSummary(ctx context.Context, planID, productName, category string) (*domain.ProductSummary, error) {
	if strings.TrimSpace(productName) == "" || strings.TrimSpace(category) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "product summary", errors.New("product name and category are required"))
	}

	plan, err := uc.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	results, err := uc.retrieve(ctx, domain.RetrieveRequest{
		PlanID: plan.ID,
		Query:  "coverage benefits protection " + strings.TrimSpace(category),
		TopK:   uc.cfg.ProductSummaryTopK,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.ProductSummary{Summary: plan.GeneratedSummary, Highlights: plan.TopReasons}, nil
	}

	summary, err := uc.generator.SummarizeProduct(ctx, *plan, productName, category, results)
	if err != nil {
		return nil, fmt.Errorf("summarize product: %w", err)
	}
	return &summary, nil
}

// RegeneratePlanSummary rebuilds the plan's stored summary and top reasons
// from its first chunks.
func (uc *AssistantUseCase) RegeneratePlanSummary(ctx context.Context, planID string) (*domain.PlanSummary, error) {
	plan, err := uc.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	chunks, err := uc.chunks.FindChunksForPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("find chunks for plan: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "regenerate plan summary", errors.New("plan has no processed policy documents"))
	}
	if len(chunks) > uc.cfg.SummaryChunkLimit {
		chunks = chunks[:uc.cfg.SummaryChunkLimit]
	}

	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = c.ChunkText
	}

	summary, err := uc.generator.SummarizePlan(ctx, *plan, passages)
	if err != nil {
		return nil, fmt.Errorf("summarize plan: %w", err)
	}
	if len(summary.TopReasons) > maxTopReasons {
		summary.TopReasons = summary.TopReasons[:maxTopReasons]
	}

	if err := uc.plans.SaveSummary(ctx, plan.ID, summary); err != nil {
		return nil, fmt.Errorf("save plan summary: %w", err)
	}
	return &summary, nil
}

func (uc *AssistantUseCase) retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.SearchResult, error) {
	embedInput := req.Query
	if req.Hybrid && uc.vocab != nil {
		embedInput = uc.vocab.ExpandQuery(req.Query)
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, embedInput)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	params := domain.SearchParams{
		PlanID:              req.PlanID,
		QueryVector:         queryVector,
		TopK:                req.TopK,
		SimilarityThreshold: *uc.cfg.SimilarityThreshold,
	}
	if params.TopK <= 0 {
		params.TopK = uc.cfg.SearchTopK
	}
	if req.Threshold != nil {
		params.SimilarityThreshold = *req.Threshold
	}

	var results []domain.SearchResult
	if req.Hybrid {
		results, err = uc.retriever.HybridSearch(ctx, domain.HybridSearchParams{SearchParams: params, QueryText: req.Query})
	} else {
		results, err = uc.retriever.Search(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("search policy chunks: %w", err)
	}
	return results, nil
}
