package mcpadapter

import (
	"context"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

type fakeAssistant struct {
	results []domain.SearchResult
	answer  *domain.Answer
	summary *domain.ProductSummary
	err     error

	lastRetrieve domain.RetrieveRequest
	lastQuestion string
	lastProduct  string
	lastCategory string
}

func (f *fakeAssistant) Ask(_ context.Context, _ string, question string, _ []domain.ChatMessage) (*domain.Answer, error) {
	f.lastQuestion = question
	return f.answer, f.err
}

func (f *fakeAssistant) Retrieve(_ context.Context, req domain.RetrieveRequest) ([]domain.SearchResult, error) {
	f.lastRetrieve = req
	return f.results, f.err
}

func (f *fakeAssistant) ProductSummary(_ context.Context, _ string, productName, category string) (*domain.ProductSummary, error) {
	f.lastProduct = productName
	f.lastCategory = category
	return f.summary, f.err
}

func (f *fakeAssistant) RegeneratePlanSummary(context.Context, string) (*domain.PlanSummary, error) {
	return nil, f.err
}

type fakeRecommender struct {
	recs []domain.Recommendation
	err  error

	lastCategory string
	lastPrice    int64
}

func (f *fakeRecommender) Recommend(_ context.Context, category string, priceCents int64) ([]domain.Recommendation, error) {
	f.lastCategory = category
	f.lastPrice = priceCents
	return f.recs, f.err
}
