package domain

import (
	"errors"
	"strings"
	"time"
)

// InsurancePlan is the canonical plan shape. Prices and deductible are in
// minor currency units (cents).
type InsurancePlan struct {
	ID                  string    `json:"id"`
	CompanyName         string    `json:"company_name"`
	PlanName            string    `json:"plan_name"`
	Description         string    `json:"description"`
	Categories          []string  `json:"categories"`
	YearlyPriceCents    int64     `json:"yearly_price_cents"`
	TwoYearlyPriceCents int64     `json:"two_yearly_price_cents"`
	CoveragePercentage  int       `json:"coverage_percentage"`
	DeductibleCents     int64     `json:"deductible_cents"`
	CoverageDescription string    `json:"coverage_description,omitempty"`
	RightOfWithdrawal   string    `json:"right_of_withdrawal,omitempty"`
	GeneratedSummary    string    `json:"generated_summary,omitempty"`
	TopReasons          []string  `json:"top_reasons,omitempty"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AnnualPriceCents returns the per-year price used for value scoring.
// Plans priced only on the two-year tier are normalised to one year.
func (p InsurancePlan) AnnualPriceCents() int64 {
	if p.YearlyPriceCents > 0 {
		return p.YearlyPriceCents
	}
	if p.TwoYearlyPriceCents > 0 {
		return p.TwoYearlyPriceCents / 2
	}
	return 0
}

func (p InsurancePlan) HasCategory(category string) bool {
	category = strings.TrimSpace(category)
	for _, c := range p.Categories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

func (p InsurancePlan) Validate() error {
	switch {
	case strings.TrimSpace(p.CompanyName) == "":
		return WrapError(ErrInvalidInput, "validate plan", errors.New("company name is required"))
	case strings.TrimSpace(p.PlanName) == "":
		return WrapError(ErrInvalidInput, "validate plan", errors.New("plan name is required"))
	case p.CoveragePercentage < 0 || p.CoveragePercentage > 100:
		return WrapError(ErrInvalidInput, "validate plan", errors.New("coverage percentage must be within 0..100"))
	case p.YearlyPriceCents < 0 || p.TwoYearlyPriceCents < 0 || p.DeductibleCents < 0:
		return WrapError(ErrInvalidInput, "validate plan", errors.New("prices and deductible must not be negative"))
	case len(p.Categories) == 0:
		return WrapError(ErrInvalidInput, "validate plan", errors.New("at least one category is required"))
	}
	return nil
}

type PlanSummary struct {
	Summary    string   `json:"summary"`
	TopReasons []string `json:"top_reasons"`
}

type ProductSummary struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

// Recommendation is a plan ranked for a product. Only the first entry of a
// ranking carries Recommended=true.
type Recommendation struct {
	Plan        InsurancePlan `json:"plan"`
	ValueScore  float64       `json:"value_score"`
	Recommended bool          `json:"recommended"`
}
