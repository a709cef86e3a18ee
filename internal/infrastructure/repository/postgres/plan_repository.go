package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const planColumns = `id, company_name, plan_name, description, categories, yearly_price_cents, two_yearly_price_cents,
	coverage_percentage, deductible_cents, coverage_description, right_of_withdrawal, generated_summary, top_reasons,
	is_active, created_at, updated_at`

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.InsurancePlan) error {
	categories, reasons, err := marshalPlanLists(plan)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO insurance_plans (`+planColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		plan.ID, plan.CompanyName, plan.PlanName, plan.Description, categories, plan.YearlyPriceCents,
		plan.TwoYearlyPriceCents, plan.CoveragePercentage, plan.DeductibleCents, plan.CoverageDescription,
		plan.RightOfWithdrawal, plan.GeneratedSummary, reasons, plan.IsActive, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.InsurancePlan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM insurance_plans WHERE id = $1`, id)

	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError(domain.ErrPlanNotFound, "get plan", id)
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return plan, nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.InsurancePlan) error {
	categories, reasons, err := marshalPlanLists(plan)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE insurance_plans
SET company_name = $2, plan_name = $3, description = $4, categories = $5, yearly_price_cents = $6,
	two_yearly_price_cents = $7, coverage_percentage = $8, deductible_cents = $9, coverage_description = $10,
	right_of_withdrawal = $11, generated_summary = $12, top_reasons = $13, is_active = $14, updated_at = $15
WHERE id = $1
`,
		plan.ID, plan.CompanyName, plan.PlanName, plan.Description, categories, plan.YearlyPriceCents,
		plan.TwoYearlyPriceCents, plan.CoveragePercentage, plan.DeductibleCents, plan.CoverageDescription,
		plan.RightOfWithdrawal, plan.GeneratedSummary, reasons, plan.IsActive, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrPlanNotFound, "update plan", plan.ID)
}

// Delete removes the plan. Documents and chunks are removed by FK cascade.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM insurance_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrPlanNotFound, "delete plan", id)
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]domain.InsurancePlan, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+planColumns+`
FROM insurance_plans
WHERE is_active
ORDER BY plan_name, id
`)
	if err != nil {
		return nil, fmt.Errorf("query active plans: %w", err)
	}
	defer rows.Close()

	out := make([]domain.InsurancePlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return out, nil
}

func (r *PlanRepository) SaveSummary(ctx context.Context, id string, summary domain.PlanSummary) error {
	reasons, err := json.Marshal(nonNilStrings(summary.TopReasons))
	if err != nil {
		return fmt.Errorf("marshal top reasons: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE insurance_plans
SET generated_summary = $2, top_reasons = $3, updated_at = $4
WHERE id = $1
`, id, summary.Summary, reasons, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save plan summary: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrPlanNotFound, "save plan summary", id)
}

func scanPlan(row rowScanner) (*domain.InsurancePlan, error) {
	var plan domain.InsurancePlan
	var categoriesRaw, reasonsRaw []byte

	err := row.Scan(
		&plan.ID, &plan.CompanyName, &plan.PlanName, &plan.Description, &categoriesRaw, &plan.YearlyPriceCents,
		&plan.TwoYearlyPriceCents, &plan.CoveragePercentage, &plan.DeductibleCents, &plan.CoverageDescription,
		&plan.RightOfWithdrawal, &plan.GeneratedSummary, &reasonsRaw, &plan.IsActive, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(categoriesRaw, &plan.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := json.Unmarshal(reasonsRaw, &plan.TopReasons); err != nil {
		return nil, fmt.Errorf("unmarshal top reasons: %w", err)
	}
	return &plan, nil
}

func marshalPlanLists(plan *domain.InsurancePlan) ([]byte, []byte, error) {
	categories, err := json.Marshal(nonNilStrings(plan.Categories))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal categories: %w", err)
	}
	reasons, err := json.Marshal(nonNilStrings(plan.TopReasons))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal top reasons: %w", err)
	}
	return categories, reasons, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func notFoundError(kind error, operation, id string) error {
	return domain.WrapError(kind, operation, fmt.Errorf("id=%s", id))
}
