package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

type PlanUseCase struct {
	plans   ports.PlanRepository
	docs    ports.PolicyDocumentRepository
	storage ports.ObjectStorage
}

func NewPlanUseCase(plans ports.PlanRepository, docs ports.PolicyDocumentRepository, storage ports.ObjectStorage) *PlanUseCase {
	return &PlanUseCase{plans: plans, docs: docs, storage: storage}
}

func (uc *PlanUseCase) Create(ctx context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error) {
	normalizePlan(&plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan.ID = uuid.NewString()
	plan.GeneratedSummary = ""
	plan.TopReasons = nil
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if err := uc.plans.Create(ctx, &plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return &plan, nil
}

func (uc *PlanUseCase) Get(ctx context.Context, id string) (*domain.InsurancePlan, error) {
	plan, err := uc.plans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}
	return plan, nil
}

// Update replaces the editable fields. Generated summary and top reasons are
// kept; they only change through summary regeneration.
func (uc *PlanUseCase) Update(ctx context.Context, plan domain.InsurancePlan) (*domain.InsurancePlan, error) {
	current, err := uc.plans.GetByID(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	normalizePlan(&plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	plan.GeneratedSummary = current.GeneratedSummary
	plan.TopReasons = current.TopReasons
	plan.CreatedAt = current.CreatedAt
	plan.UpdatedAt = time.Now().UTC()

	if err := uc.plans.Update(ctx, &plan); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return &plan, nil
}

// Delete removes the plan; documents and chunks go with it through the
// store's cascade. Stored files are removed best-effort afterwards.
func (uc *PlanUseCase) Delete(ctx context.Context, id string) error {
	docs, err := uc.docs.ListByPlan(ctx, id)
	if err != nil {
		return fmt.Errorf("list plan documents: %w", err)
	}

	if err := uc.plans.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	for _, doc := range docs {
		if err := uc.storage.Delete(ctx, doc.StorageKey); err != nil {
			slog.Warn("policy_file_delete_failed",
				"plan_id", id,
				"document_id", doc.ID,
				"storage_key", doc.StorageKey,
				"error", err.Error(),
			)
		}
	}
	return nil
}

func (uc *PlanUseCase) ListDocuments(ctx context.Context, planID string) ([]domain.PolicyDocument, error) {
	if _, err := uc.plans.GetByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}
	docs, err := uc.docs.ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan documents: %w", err)
	}
	return docs, nil
}

func normalizePlan(plan *domain.InsurancePlan) {
	plan.CompanyName = strings.TrimSpace(plan.CompanyName)
	plan.PlanName = strings.TrimSpace(plan.PlanName)
	categories := make([]string, 0, len(plan.Categories))
	for _, c := range plan.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	plan.Categories = categories
}
