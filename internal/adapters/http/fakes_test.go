package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/config"
	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/observability/metrics"
)

type planServiceFake struct {
	plans map[string]domain.InsurancePlan
	docs  []domain.PolicyDocument
	err   error
}

func (f *planServiceFake) Create(_ context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	if plan.PlanName == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create plan", errors.New("plan name is required"))
	}
	plan.ID = "plan-new"
	return &plan, nil
}

func (f *planServiceFake) Get(_ context.Context, id string) (*domain.InsurancePlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	plan, ok := f.plans[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPlanNotFound, "get plan", errors.New("id="+id))
	}
	return &plan, nil
}

func (f *planServiceFake) Update(ctx context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error) {
	if _, err := f.Get(ctx, plan.ID); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (f *planServiceFake) Delete(ctx context.Context, id string) error {
	_, err := f.Get(ctx, id)
	return err
}

func (f *planServiceFake) ListDocuments(ctx context.Context, planID string) ([]domain.PolicyDocument, error) {
	if _, err := f.Get(ctx, planID); err != nil {
		return nil, err
	}
	return f.docs, nil
}

type uploaderFake struct {
	planID   string
	fileName string
	body     string
}

func (f *uploaderFake) Upload(_ context.Context, planID, filename, mimeType string, body io.Reader) (*domain.PolicyDocument, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	f.planID, f.fileName, f.body = planID, filename, string(raw)
	return &domain.PolicyDocument{
		ID:        "doc-1",
		PlanID:    planID,
		FileName:  filename,
		MimeType:  mimeType,
		SizeBytes: int64(len(raw)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

type ingestorFake struct {
	err error
}

func (f ingestorFake) IngestDocument(_ context.Context, documentID string) (*domain.IngestionReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestionReport{DocumentID: documentID, Chunks: 3, Batches: 1}, nil
}

func (f ingestorFake) ReingestPlan(_ context.Context, planID string) (*domain.ReingestReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReingestReport{PlanID: planID, Documents: []domain.IngestionReport{{DocumentID: "doc-1", Chunks: 3}}}, nil
}

type assistantFake struct {
	err         error
	lastRequest domain.RetrieveRequest
	results     []domain.SearchResult
}

func (f *assistantFake) Ask(_ context.Context, planID, question string, history []domain.ChatMessage) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "answer to " + question, Grounded: len(history) >= 0, Sources: f.results}, nil
}

func (f *assistantFake) Retrieve(_ context.Context, req domain.RetrieveRequest) ([]domain.SearchResult, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *assistantFake) ProductSummary(_ context.Context, planID, productName, category string) (*domain.ProductSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProductSummary{Summary: productName + " " + category, Highlights: []string{"a"}}, nil
}

func (f *assistantFake) RegeneratePlanSummary(context.Context, string) (*domain.PlanSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PlanSummary{Summary: "s", TopReasons: []string{"r"}}, nil
}

type recommenderFake struct {
	recs []domain.Recommendation
	err  error
}

func (f recommenderFake) Recommend(context.Context, string, int64) ([]domain.Recommendation, error) {
	return f.recs, f.err
}

type routerFixture struct {
	plans     *planServiceFake
	uploader  *uploaderFake
	ingestor  ingestorFake
	assistant *assistantFake
	recs      recommenderFake
	cfg       config.Config
}

func newRouterFixture() *routerFixture {
	return &routerFixture{
		plans: &planServiceFake{plans: map[string]domain.InsurancePlan{
			"plan-1": {ID: "plan-1", CompanyName: "Schutzbrief AG", PlanName: "Handy Plus", CoveragePercentage: 80, IsActive: true},
		}},
		uploader:  &uploaderFake{},
		assistant: &assistantFake{},
	}
}

func (f *routerFixture) handler() http.Handler {
	return NewRouter(f.cfg, Services{
		Plans:       f.plans,
		Uploader:    f.uploader,
		Ingestor:    f.ingestor,
		Assistant:   f.assistant,
		Recommender: f.recs,
	}, metrics.NewHTTPServerMetrics("policy-api")).Handler()
}
