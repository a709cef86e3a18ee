package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

type RetrievalUseCase struct {
	chunks       ports.ChunkStore
	vocab        ports.Vocabulary
	keywordFloor float64
}

func NewRetrievalUseCase(chunks ports.ChunkStore, vocab ports.Vocabulary, keywordFloor float64) *RetrievalUseCase {
	if keywordFloor <= 0 {
		keywordFloor = domain.DefaultKeywordScoreFloor
	}
	return &RetrievalUseCase{
		chunks:       chunks,
		vocab:        vocab,
		keywordFloor: keywordFloor,
	}
}

// Search scores every chunk of the plan against the query vector, keeps
// those at or above the threshold and returns at most TopK, best first.
// Equal scores keep store order.
func (uc *RetrievalUseCase) Search(ctx context.Context, params domain.SearchParams) ([]domain.SearchResult, error) {
	params, err := normalizeSearchParams(params)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.chunks.FindChunksForPlan(ctx, params.PlanID)
	if err != nil {
		return nil, fmt.Errorf("find chunks for plan: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		score := CosineSimilarity(params.QueryVector, chunk.Embedding)
		if score < params.SimilarityThreshold {
			continue
		}
		results = append(results, toSearchResult(chunk, score))
	}

	sortByScore(results)
	return trimResults(results, params.TopK), nil
}

// HybridSearch unions keyword-matched chunks, scored with a floor, and a
// vector pool of twice the requested size, then dedupes and truncates.
func (uc *RetrievalUseCase) HybridSearch(ctx context.Context, params domain.HybridSearchParams) ([]domain.SearchResult, error) {
	base, err := normalizeSearchParams(params.SearchParams)
	if err != nil {
		return nil, err
	}

	keywordPool, err := uc.keywordPool(ctx, base, params.QueryText)
	if err != nil {
		return nil, err
	}

	vectorParams := base
	vectorParams.TopK = base.TopK * domain.DefaultHybridPoolMultiplier
	vectorPool, err := uc.Search(ctx, vectorParams)
	if err != nil {
		return nil, fmt.Errorf("vector pool: %w", err)
	}

	merged := mergeByChunkKey(keywordPool, vectorPool)
	sortByScore(merged)
	return trimResults(merged, base.TopK), nil
}

func (uc *RetrievalUseCase) keywordPool(ctx context.Context, params domain.SearchParams, queryText string) ([]domain.SearchResult, error) {
	if uc.vocab == nil || strings.TrimSpace(queryText) == "" {
		return nil, nil
	}
	terms := uc.vocab.KeywordTerms(queryText)
	if len(terms) == 0 {
		return nil, nil
	}

	chunks, err := uc.chunks.FindChunksForPlanMatching(ctx, params.PlanID, terms)
	if err != nil {
		return nil, fmt.Errorf("find keyword chunks: %w", err)
	}

	pool := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		score := math.Max(CosineSimilarity(params.QueryVector, chunk.Embedding), uc.keywordFloor)
		pool = append(pool, toSearchResult(chunk, score))
	}
	return pool, nil
}

func normalizeSearchParams(params domain.SearchParams) (domain.SearchParams, error) {
	params.PlanID = strings.TrimSpace(params.PlanID)
	if params.PlanID == "" {
		return params, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("plan id is required"))
	}
	if math.IsNaN(params.SimilarityThreshold) {
		return params, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("similarity threshold is not a number"))
	}
	if params.TopK <= 0 {
		params.TopK = domain.DefaultSearchTopK
	}
	return params, nil
}

func toSearchResult(chunk domain.PolicyChunk, score float64) domain.SearchResult {
	return domain.SearchResult{
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.ChunkIndex,
		ChunkText:  chunk.ChunkText,
		Score:      score,
	}
}
