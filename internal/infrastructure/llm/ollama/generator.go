package ollama

import (
	"context"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const maxPlanReasons = 3

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (g *Generator) AnswerQuestion(
	ctx context.Context,
	plan domain.InsurancePlan,
	question string,
	history []domain.ChatMessage,
	passages []domain.SearchResult,
) (string, error) {
	return g.generate(ctx, buildAnswerPrompt(plan, question, history, passages))
}

func (g *Generator) SummarizePlan(ctx context.Context, plan domain.InsurancePlan, passages []string) (domain.PlanSummary, error) {
	raw, err := g.generate(ctx, buildPlanSummaryPrompt(passages))
	if err != nil {
		return domain.PlanSummary{}, err
	}
	summary, reasons := splitSections(raw, "SUMMARY:", "TOP_REASONS:")
	if len(reasons) > maxPlanReasons {
		reasons = reasons[:maxPlanReasons]
	}
	return domain.PlanSummary{Summary: summary, TopReasons: reasons}, nil
}

func (g *Generator) SummarizeProduct(
	ctx context.Context,
	plan domain.InsurancePlan,
	productName, category string,
	passages []domain.SearchResult,
) (domain.ProductSummary, error) {
	raw, err := g.generate(ctx, buildProductSummaryPrompt(plan, productName, category, passages))
	if err != nil {
		return domain.ProductSummary{}, err
	}
	summary, highlights := splitSections(raw, "SUMMARY:", "HIGHLIGHTS:")
	return domain.ProductSummary{Summary: summary, Highlights: highlights}, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	var response generateResponse
	err := g.client.call(ctx, "ollama_generate", "/api/generate", generateRequest{
		Model:  g.client.genModel,
		Prompt: prompt,
		Stream: false,
	}, &response)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// splitSections reads the "<head> text <listHead> - item" response layout.
// A missing head yields an empty summary; a missing list yields no items.
func splitSections(raw, head, listHead string) (string, []string) {
	summary := ""
	if idx := strings.Index(raw, head); idx >= 0 {
		rest := raw[idx+len(head):]
		if end := strings.Index(rest, listHead); end >= 0 {
			rest = rest[:end]
		}
		summary = strings.TrimSpace(rest)
	}

	items := []string{}
	if idx := strings.Index(raw, listHead); idx >= 0 {
		for _, line := range strings.Split(raw[idx+len(listHead):], "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if line != "" {
				items = append(items, line)
			}
		}
	}
	return summary, items
}
