package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditpipe/creditpipe/internal/models"
	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/report"
)

type ConsolidationHandler struct {
	svc     *report.Service
	manager *report.Manager
	queue   *queue.Client
}

func NewConsolidationHandler(svc *report.Service, manager *report.Manager, qc *queue.Client) *ConsolidationHandler {
	return &ConsolidationHandler{svc: svc, manager: manager, queue: qc}
}

// Get returns the current consolidation metadata for a report.
func (h *ConsolidationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	meta, err := h.svc.GetConsolidation(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no consolidation for report"})
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// Compare shows field-level agreement across the report's successful
// extraction results without changing anything.
func (h *ConsolidationHandler) Compare(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	cmp, err := h.manager.Compare(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, cmp)
}

type triggerRequest struct {
	Strategy string `json:"strategy"`
}

// Trigger queues a reconsolidation under the requested strategy.
func (h *ConsolidationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	var req triggerRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Strategy != "" && !models.ValidStrategy(req.Strategy) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown strategy: " + req.Strategy})
		return
	}

	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	if err := h.queue.EnqueueReportConsolidate(queue.ReportConsolidatePayload{
		ReportID: id.String(),
		Strategy: req.Strategy,
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue consolidation"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id.String(), "status": "queued"})
}
