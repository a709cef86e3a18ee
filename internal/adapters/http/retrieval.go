package httpadapter

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/chunking"
)

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
	Hybrid    bool     `json:"hybrid"`
}

type askRequest struct {
	Question string               `json:"question"`
	History  []domain.ChatMessage `json:"history"`
}

type productSummaryRequest struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

const defaultMaxPreviewChunkSize = 10000

type chunkPreviewRequest struct {
	Text         string `json:"text"`
	MaxChunkSize int    `json:"max_chunk_size"`
	Overlap      *int   `json:"overlap"`
}

func (rt *Router) searchPlan(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeBadRequest(w, r, "query is required")
		return
	}

	start := time.Now()
	results, err := rt.svc.Assistant.Retrieve(r.Context(), domain.RetrieveRequest{
		PlanID:    r.PathValue("planID"),
		Query:     req.Query,
		TopK:      req.TopK,
		Threshold: req.Threshold,
		Hybrid:    req.Hybrid,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(rt.service, "search", req.Hybrid, len(results), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) askPlan(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeBadRequest(w, r, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.svc.Assistant.Ask(r.Context(), r.PathValue("planID"), req.Question, req.History)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(rt.service, "ask", true, len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) productSummary(w http.ResponseWriter, r *http.Request) {
	var req productSummaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := rt.svc.Assistant.ProductSummary(r.Context(), r.PathValue("planID"), req.ProductName, req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// recommend never fails because of the store: shoppers get an empty list
// and the outage is logged.
func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		writeBadRequest(w, r, "category is required")
		return
	}
	price, err := strconv.ParseInt(r.URL.Query().Get("price_cents"), 10, 64)
	if err != nil {
		writeBadRequest(w, r, "price_cents must be an integer")
		return
	}

	recs, err := rt.svc.Recommender.Recommend(r.Context(), category, price)
	outcome := "matched"
	switch {
	case err != nil && domain.IsKind(err, domain.ErrInvalidInput):
		writeError(w, r, err)
		return
	case err != nil:
		slog.Warn("recommendations_degraded",
			"request_id", requestIDFromContext(r.Context()),
			"category", category,
			"error", err,
		)
		recs = []domain.Recommendation{}
		outcome = "degraded"
	case len(recs) == 0:
		outcome = "empty"
	}
	if rt.metrics != nil {
		rt.metrics.RecordRecommendation(rt.service, outcome)
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (rt *Router) previewChunks(w http.ResponseWriter, r *http.Request) {
	var req chunkPreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	opts := chunking.Options{MaxChunkSize: rt.cfg.ChunkSize, Overlap: rt.cfg.ChunkOverlap}
	if req.MaxChunkSize > 0 {
		opts.MaxChunkSize = req.MaxChunkSize
	}
	if req.Overlap != nil {
		opts.Overlap = *req.Overlap
	}
	ceiling := rt.cfg.MaxPreviewChunkSize
	if ceiling <= 0 {
		ceiling = defaultMaxPreviewChunkSize
	}
	opts.MaxChunkSize = min(opts.MaxChunkSize, ceiling)
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunking.ChunkText(req.Text, opts)})
}
