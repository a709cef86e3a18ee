package httpadapter

import (
	"net/http"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

func (rt *Router) createPlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.InsurancePlan
	if err := decodeJSON(w, r, &plan); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := rt.svc.Plans.Create(r.Context(), plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (rt *Router) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := rt.svc.Plans.Get(r.Context(), r.PathValue("planID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (rt *Router) updatePlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.InsurancePlan
	if err := decodeJSON(w, r, &plan); err != nil {
		writeError(w, r, err)
		return
	}
	plan.ID = r.PathValue("planID")

	updated, err := rt.svc.Plans.Update(r.Context(), plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Plans.Delete(r.Context(), r.PathValue("planID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(rt.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, r, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.svc.Uploader.Upload(
		r.Context(),
		r.PathValue("planID"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.svc.Plans.ListDocuments(r.Context(), r.PathValue("planID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) reingestPlan(w http.ResponseWriter, r *http.Request) {
	report, err := rt.svc.Ingestor.ReingestPlan(r.Context(), r.PathValue("planID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) ingestDocument(w http.ResponseWriter, r *http.Request) {
	report, err := rt.svc.Ingestor.IngestDocument(r.Context(), r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) regenerateSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.svc.Assistant.RegeneratePlanSummary(r.Context(), r.PathValue("planID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
