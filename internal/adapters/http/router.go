package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kirillkom/insurance-upsell/internal/config"
	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
	"github.com/kirillkom/insurance-upsell/internal/observability/metrics"
)

const maxJSONBodyBytes = 1 << 20

// Services are the inbound use cases the API exposes.
type Services struct {
	Plans       ports.PlanService
	Uploader    ports.PolicyUploader
	Ingestor    ports.PolicyIngestor
	Assistant   ports.PolicyAssistant
	Recommender ports.Recommender
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
	service string
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:     cfg,
		svc:     svc,
		metrics: httpMetrics,
		service: "policy-api",
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/plans", rt.createPlan)
	mux.HandleFunc("GET /v1/plans/{planID}", rt.getPlan)
	mux.HandleFunc("PUT /v1/plans/{planID}", rt.updatePlan)
	mux.HandleFunc("DELETE /v1/plans/{planID}", rt.deletePlan)
	mux.HandleFunc("POST /v1/plans/{planID}/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/plans/{planID}/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/plans/{planID}/reingest", rt.reingestPlan)
	mux.HandleFunc("POST /v1/plans/{planID}/summary", rt.regenerateSummary)

	mux.HandleFunc("POST /v1/plans/{planID}/search", rt.searchPlan)
	mux.HandleFunc("POST /v1/plans/{planID}/ask", rt.askPlan)
	mux.HandleFunc("POST /v1/plans/{planID}/product-summary", rt.productSummary)
	mux.HandleFunc("POST /v1/documents/{documentID}/ingest", rt.ingestDocument)
	mux.HandleFunc("GET /v1/recommendations", rt.recommend)
	mux.HandleFunc("POST /v1/chunks/preview", rt.previewChunks)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

// decodeJSON reads a bounded JSON body. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}
