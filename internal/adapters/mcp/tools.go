package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("search_policy",
		mcp.WithDescription("Search the policy text of one insurance plan and return the best matching passages."),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan identifier")),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for in the policy")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of passages (default 10)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity score between 0 and 1")),
		mcp.WithBoolean("hybrid", mcp.Description("Combine keyword and vector matches")),
	), s.handleSearch)

	s.server.AddTool(mcp.NewTool("ask_policy",
		mcp.WithDescription("Answer a question using only the policy text of one insurance plan."),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan identifier")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Customer question")),
	), s.handleAsk)

	s.server.AddTool(mcp.NewTool("product_summary",
		mcp.WithDescription("Summarize what a plan covers for a specific product."),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan identifier")),
		mcp.WithString("product_name", mcp.Required(), mcp.Description("Product the customer is buying")),
		mcp.WithString("category", mcp.Description("Product category")),
	), s.handleProductSummary)

	if s.ports.Recommender != nil {
		s.server.AddTool(mcp.NewTool("recommend_plans",
			mcp.WithDescription("Rank active insurance plans for a product category and price."),
			mcp.WithString("category", mcp.Required(), mcp.Description("Product category")),
			mcp.WithNumber("price_cents", mcp.Description("Product price in cents")),
		), s.handleRecommend)
	}
}

type searchOutput struct {
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	retrieveReq := domain.RetrieveRequest{
		PlanID: planID,
		Query:  query,
		TopK:   req.GetInt("top_k", 0),
		Hybrid: req.GetBool("hybrid", false),
	}
	if _, ok := req.GetArguments()["threshold"]; ok {
		threshold := req.GetFloat("threshold", domain.DefaultSimilarityThreshold)
		retrieveReq.Threshold = &threshold
	}

	results, err := s.ports.Assistant.Retrieve(ctx, retrieveReq)
	if err != nil {
		return toolError("search_policy", err)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return jsonResult(searchOutput{Results: results, Count: len(results)})
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.ports.Assistant.Ask(ctx, planID, question, nil)
	if err != nil {
		return toolError("ask_policy", err)
	}
	return jsonResult(answer)
}

func (s *Server) handleProductSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	product, err := req.RequireString("product_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := s.ports.Assistant.ProductSummary(ctx, planID, product, req.GetString("category", ""))
	if err != nil {
		return toolError("product_summary", err)
	}
	return jsonResult(summary)
}

type recommendOutput struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

func (s *Server) handleRecommend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	price := req.GetFloat("price_cents", 0)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return mcp.NewToolResultError("price_cents must be a finite number"), nil
	}

	recs, err := s.ports.Recommender.Recommend(ctx, category, int64(price))
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		slog.Warn("recommendations_degraded", "category", category, "error", err)
		recs = nil
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	return jsonResult(recommendOutput{Recommendations: recs})
}

// toolError reports caller mistakes as tool results and everything else as
// protocol errors.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrPlanNotFound),
		domain.IsKind(err, domain.ErrDocumentNotFound):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, fmt.Errorf("%s: %w", tool, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
