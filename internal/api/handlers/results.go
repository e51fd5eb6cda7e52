package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditpipe/creditpipe/internal/report"
)

type ResultHandler struct {
	svc *report.Service
}

func NewResultHandler(svc *report.Service) *ResultHandler {
	return &ResultHandler{svc: svc}
}

// List returns every extraction attempt for a report, failures included,
// oldest first.
func (h *ResultHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	results, err := h.svc.ListResults(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

// Entities returns the stored consolidated entity view for a report.
func (h *ResultHandler) Entities(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	entities, err := h.svc.GetEntities(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, entities)
}
