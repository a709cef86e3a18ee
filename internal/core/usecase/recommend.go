package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

// ValueScore estimates protected value per unit of annual premium:
// (coverage% * price - min(deductible, price)) / annual price.
// Non-positive product or plan prices score 0.
func ValueScore(plan domain.InsurancePlan, productPriceCents int64) float64 {
	reference := plan.AnnualPriceCents()
	if reference <= 0 || productPriceCents <= 0 {
		return 0
	}

	price := float64(productPriceCents)
	deductible := math.Min(float64(max(plan.DeductibleCents, 0)), price)
	covered := float64(plan.CoveragePercentage) / 100 * price

	score := (covered - deductible) / float64(reference)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

type RecommendUseCase struct {
	plans ports.PlanRepository
}

func NewRecommendUseCase(plans ports.PlanRepository) *RecommendUseCase {
	return &RecommendUseCase{plans: plans}
}

// Recommend ranks active plans covering category by ValueScore. The first
// entry is flagged as the recommended plan.
func (uc *RecommendUseCase) Recommend(ctx context.Context, category string, productPriceCents int64) ([]domain.Recommendation, error) {
	if strings.TrimSpace(category) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend", errors.New("category is required"))
	}

	plans, err := uc.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}

	out := make([]domain.Recommendation, 0, len(plans))
	for _, plan := range plans {
		if !plan.IsActive || !plan.HasCategory(category) {
			continue
		}
		out = append(out, domain.Recommendation{
			Plan:       plan,
			ValueScore: ValueScore(plan, productPriceCents),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ValueScore != out[j].ValueScore {
			return out[i].ValueScore > out[j].ValueScore
		}
		if out[i].Plan.PlanName != out[j].Plan.PlanName {
			return out[i].Plan.PlanName < out[j].Plan.PlanName
		}
		return out[i].Plan.ID < out[j].Plan.ID
	})
	if len(out) > 0 {
		out[0].Recommended = true
	}
	return out, nil
}
