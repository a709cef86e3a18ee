package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

type chunkStoreFake struct {
	mu sync.Mutex

	// plan id -> chunks in store order
	byPlan map[string][]domain.PolicyChunk
	// document id -> plan id, used to route inserts
	docPlan map[string]string

	insertCalls  int
	failInsertAt int
	insertErr    error
	resetCalls   []string
	resetErr     error
	findErr      error
	matchErr     error
	matchedTerms []string
}

func newChunkStoreFake() *chunkStoreFake {
	return &chunkStoreFake{
		byPlan:  map[string][]domain.PolicyChunk{},
		docPlan: map[string]string{},
	}
}

func (f *chunkStoreFake) add(planID string, chunks ...domain.PolicyChunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.docPlan[c.DocumentID] = planID
	}
	f.byPlan[planID] = append(f.byPlan[planID], chunks...)
}

func (f *chunkStoreFake) InsertChunks(_ context.Context, documentID string, chunks []domain.PolicyChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.failInsertAt > 0 && f.insertCalls == f.failInsertAt {
		if f.insertErr != nil {
			return f.insertErr
		}
		return errors.New("insert failed")
	}
	planID := f.docPlan[documentID]
	f.byPlan[planID] = append(f.byPlan[planID], chunks...)
	return nil
}

func (f *chunkStoreFake) ResetDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls = append(f.resetCalls, documentID)
	if f.resetErr != nil {
		return f.resetErr
	}
	planID := f.docPlan[documentID]
	kept := f.byPlan[planID][:0]
	for _, c := range f.byPlan[planID] {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.byPlan[planID] = kept
	return nil
}

func (f *chunkStoreFake) FindChunksForPlan(_ context.Context, planID string) ([]domain.PolicyChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return append([]domain.PolicyChunk(nil), f.byPlan[planID]...), nil
}

func (f *chunkStoreFake) FindChunksForPlanMatching(_ context.Context, planID string, terms []string) ([]domain.PolicyChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchedTerms = append([]string(nil), terms...)
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	out := make([]domain.PolicyChunk, 0)
	for _, c := range f.byPlan[planID] {
		text := strings.ToLower(c.ChunkText)
		for _, term := range terms {
			if strings.Contains(text, strings.ToLower(term)) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *chunkStoreFake) countForDocument(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.byPlan[f.docPlan[documentID]] {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n
}

type planRepoFake struct {
	plans     map[string]*domain.InsurancePlan
	listErr   error
	getErr    error
	saved     map[string]domain.PlanSummary
	deleted   []string
	createErr error
}

func newPlanRepoFake(plans ...domain.InsurancePlan) *planRepoFake {
	f := &planRepoFake{plans: map[string]*domain.InsurancePlan{}, saved: map[string]domain.PlanSummary{}}
	for i := range plans {
		p := plans[i]
		f.plans[p.ID] = &p
	}
	return f
}

func (f *planRepoFake) Create(_ context.Context, plan *domain.InsurancePlan) error {
	if f.createErr != nil {
		return f.createErr
	}
	p := *plan
	f.plans[plan.ID] = &p
	return nil
}

func (f *planRepoFake) GetByID(_ context.Context, id string) (*domain.InsurancePlan, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.plans[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPlanNotFound, "get plan", errors.New(id))
	}
	copyPlan := *p
	return &copyPlan, nil
}

func (f *planRepoFake) Update(_ context.Context, plan *domain.InsurancePlan) error {
	if _, ok := f.plans[plan.ID]; !ok {
		return domain.WrapError(domain.ErrPlanNotFound, "update plan", errors.New(plan.ID))
	}
	p := *plan
	f.plans[plan.ID] = &p
	return nil
}

func (f *planRepoFake) Delete(_ context.Context, id string) error {
	if _, ok := f.plans[id]; !ok {
		return domain.WrapError(domain.ErrPlanNotFound, "delete plan", errors.New(id))
	}
	delete(f.plans, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *planRepoFake) ListActive(context.Context) ([]domain.InsurancePlan, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.InsurancePlan, 0, len(f.plans))
	for _, p := range f.plans {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *planRepoFake) SaveSummary(_ context.Context, id string, summary domain.PlanSummary) error {
	if _, ok := f.plans[id]; !ok {
		return domain.WrapError(domain.ErrPlanNotFound, "save summary", errors.New(id))
	}
	f.saved[id] = summary
	return nil
}

type documentRepoFake struct {
	mu sync.Mutex

	docs    map[string]*domain.PolicyDocument
	order   []string
	created []*domain.PolicyDocument
	// document id -> token of the run holding the ingestion claim
	claims map[string]string

	markCalls    []string
	releaseCalls []string
	markErr      error
	listErr      error
	createErr    error
}

func newDocumentRepoFake(docs ...domain.PolicyDocument) *documentRepoFake {
	f := &documentRepoFake{docs: map[string]*domain.PolicyDocument{}, claims: map[string]string{}}
	for i := range docs {
		d := docs[i]
		f.docs[d.ID] = &d
		f.order = append(f.order, d.ID)
	}
	return f
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.PolicyDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	d := *doc
	f.docs[doc.ID] = &d
	f.order = append(f.order, doc.ID)
	f.created = append(f.created, &d)
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.PolicyDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *d
	return &copyDoc, nil
}

func (f *documentRepoFake) ListByPlan(_ context.Context, planID string) ([]domain.PolicyDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.PolicyDocument, 0)
	for _, id := range f.order {
		if d, ok := f.docs[id]; ok && d.PlanID == planID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// ClaimIngestion ignores the lease; claims here never expire.
func (f *documentRepoFake) ClaimIngestion(_ context.Context, id, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "claim ingestion", errors.New(id))
	}
	if held, ok := f.claims[id]; ok && held != token {
		return domain.WrapError(domain.ErrIngestionInProgress, "claim ingestion", errors.New(id))
	}
	f.claims[id] = token
	return nil
}

func (f *documentRepoFake) ReleaseIngestion(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls = append(f.releaseCalls, id)
	if f.claims[id] == token {
		delete(f.claims, id)
	}
	return nil
}

func (f *documentRepoFake) MarkProcessed(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, id)
	if f.markErr != nil {
		return f.markErr
	}
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark processed", errors.New(id))
	}
	if f.claims[id] != token {
		return domain.WrapError(domain.ErrIngestionInProgress, "mark processed", errors.New(id))
	}
	d.Processed = true
	return nil
}

func (f *documentRepoFake) processed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	return ok && d.Processed
}

// steal hands the claim to another run, as if the lease had expired.
func (f *documentRepoFake) steal(id, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[id] = token
}

func (f *documentRepoFake) claimed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claims[id]
	return ok
}

type extractorFake struct {
	texts map[string]string
	text  string
	err   error
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.PolicyDocument) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if t, ok := f.texts[doc.ID]; ok {
		return t, nil
	}
	return f.text, nil
}

// embedderFake returns a fixed vector per text, or a 2-dim default.
type embedderFake struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	batchSizes []int
	queries    []string
	failAt     int
	err        error
	short      bool
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.failAt > 0 && len(f.batchSizes) == f.failAt {
		if f.err != nil {
			return nil, f.err
		}
		return nil, domain.WrapError(domain.ErrProvider, "embed", errors.New("provider down"))
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectorFor(t))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil && f.failAt == 0 {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *embedderFake) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return []float32{1, 0}
}

type storageFake struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(string(raw))), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

type queueFake struct {
	published []domain.IngestionEvent
	err       error
}

func (f *queueFake) PublishIngestion(_ context.Context, event domain.IngestionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func (f *queueFake) SubscribeIngestion(context.Context, func(context.Context, domain.IngestionEvent) error) error {
	return nil
}

type generatorFake struct {
	answer         string
	planSummary    domain.PlanSummary
	productSummary domain.ProductSummary
	err            error

	answerCalls   int
	lastPassages  []domain.SearchResult
	lastHistory   []domain.ChatMessage
	summaryInputs []string
	productCalls  int
}

func (f *generatorFake) AnswerQuestion(_ context.Context, _ domain.InsurancePlan, _ string, history []domain.ChatMessage, passages []domain.SearchResult) (string, error) {
	f.answerCalls++
	f.lastHistory = history
	f.lastPassages = passages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *generatorFake) SummarizePlan(_ context.Context, _ domain.InsurancePlan, passages []string) (domain.PlanSummary, error) {
	f.summaryInputs = passages
	if f.err != nil {
		return domain.PlanSummary{}, f.err
	}
	return f.planSummary, nil
}

func (f *generatorFake) SummarizeProduct(_ context.Context, _ domain.InsurancePlan, _, _ string, passages []domain.SearchResult) (domain.ProductSummary, error) {
	f.productCalls++
	f.lastPassages = passages
	if f.err != nil {
		return domain.ProductSummary{}, f.err
	}
	return f.productSummary, nil
}
