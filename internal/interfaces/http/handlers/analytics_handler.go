package handlers

import (
	"net/http"

	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

// AnalyticsHandler serves the catalog-wide analytics views.
type AnalyticsHandler struct {
	svc    recommendation.Service
	logger logging.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc recommendation.Service, logger logging.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// CorrelationRequest selects the columns to correlate. Empty means the six
// analysed properties.
type CorrelationRequest struct {
	Columns []string `json:"columns"`
}

// PCARequest names the recommended labels to flag in the projection.
type PCARequest struct {
	Recommended []string `json:"recommended"`
	Seed        *int64   `json:"seed,omitempty"`
}

// Correlation handles POST /api/v1/analytics/correlation.
func (h *AnalyticsHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	var req CorrelationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	m, err := h.svc.Correlation(r.Context(), req.Columns)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PCA handles POST /api/v1/analytics/pca.
func (h *AnalyticsHandler) PCA(w http.ResponseWriter, r *http.Request) {
	var req PCARequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	res, err := h.svc.Projection(r.Context(), req.Recommended, req.Seed)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
