package handlers

import (
	"bytes"
	"net/http"

	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

// RecommendationHandler serves ranking queries and their views.
type RecommendationHandler struct {
	svc    recommendation.Service
	logger logging.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(svc recommendation.Service, logger logging.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, logger: logger}
}

// DefaultRequirementsResponse lists the starting requirements.
type DefaultRequirementsResponse struct {
	Requirements material.RequirementSpec `json:"requirements"`
	DefaultK     int                      `json:"default_k"`
	MaxK         int                      `json:"max_k"`
}

// DefaultRequirements handles GET /api/v1/requirements/default.
func (h *RecommendationHandler) DefaultRequirements(w http.ResponseWriter, r *http.Request) {
	set := h.svc.Settings()
	writeJSON(w, http.StatusOK, DefaultRequirementsResponse{
		Requirements: material.DefaultRequirements(),
		DefaultK:     set.DefaultK,
		MaxK:         set.MaxK,
	})
}

func (h *RecommendationHandler) query(w http.ResponseWriter, r *http.Request) (recommendation.Query, bool) {
	var q recommendation.Query
	if err := decodeJSON(w, r, &q); err != nil {
		writeAppError(w, err)
		return q, false
	}
	return q, true
}

// Recommend handles POST /api/v1/recommendations.
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Recommend(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Rank handles POST /api/v1/recommendations/rank.
func (h *RecommendationHandler) Rank(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Rank(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Deviations handles POST /api/v1/recommendations/deviations.
func (h *RecommendationHandler) Deviations(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Deviations(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Profile handles POST /api/v1/recommendations/profile.
func (h *RecommendationHandler) Profile(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Profile(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Export handles POST /api/v1/recommendations/export and returns the CSV as
// an attachment. When a copy was uploaded its link is in X-Export-URL.
func (h *RecommendationHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	res, err := h.svc.Export(r.Context(), q, &buf)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.FileName+`"`)
	w.Header().Set("X-Query-ID", res.QueryID)
	if res.Upload != nil {
		w.Header().Set("X-Export-URL", res.Upload.URL)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write export response", logging.Err(err))
	}
}
