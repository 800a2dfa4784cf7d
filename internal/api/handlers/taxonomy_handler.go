package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/referralintake/internal/application/services"
)

// TaxonomyService defines the taxonomy operations used by the handler
type TaxonomyService interface {
	View(ctx context.Context) (*services.TaxonomyView, error)
}

// TaxonomyHandler serves the rendered taxonomy
type TaxonomyHandler struct {
	service TaxonomyService
}

// NewTaxonomyHandler creates a new taxonomy handler
func NewTaxonomyHandler(service TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{service: service}
}

// GetTaxonomy handles GET /api/taxonomy
func (h *TaxonomyHandler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}
