package handlers

import (
	"net/http"

	"github.com/Arisex96/bio-mat-new/internal/application/catalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// DefaultMaxImportSize bounds an uploaded catalog when no limit is configured.
const DefaultMaxImportSize int64 = 16 << 20

// CatalogHandler serves the catalog endpoints.
type CatalogHandler struct {
	svc     catalog.Service
	logger  logging.Logger
	maxBody int64
}

// NewCatalogHandler creates a new CatalogHandler. maxBody <= 0 selects
// DefaultMaxImportSize.
func NewCatalogHandler(svc catalog.Service, logger logging.Logger, maxBody int64) *CatalogHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxImportSize
	}
	return &CatalogHandler{svc: svc, logger: logger, maxBody: maxBody}
}

// Overview handles GET /api/v1/catalog.
func (h *CatalogHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// Import handles POST /api/v1/catalog/import. The body is the CSV file; the
// optional source query parameter labels it.
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		writeAppError(w, errors.New(errors.ErrCodeBadRequest, "catalog body is required"))
		return
	}
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer body.Close()

	source := r.URL.Query().Get("source")
	res, err := h.svc.Import(r.Context(), body, source)
	if err != nil {
		h.logger.Warn("catalog import rejected", logging.String("source", source), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
