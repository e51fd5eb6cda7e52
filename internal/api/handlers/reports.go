package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditpipe/creditpipe/internal/cache"
	"github.com/creditpipe/creditpipe/internal/models"
	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/report"
)

// statusCacheTTL keeps status polling off the database without letting
// clients see a stale terminal state for long.
const statusCacheTTL = 5 * time.Second

type ReportHandler struct {
	svc   *report.Service
	queue *queue.Client
	cache *cache.Cache
}

func NewReportHandler(svc *report.Service, qc *queue.Client, c *cache.Cache) *ReportHandler {
	return &ReportHandler{svc: svc, queue: qc, cache: c}
}

func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	bureau := r.FormValue("bureau")
	if bureau == "" {
		bureau = "unknown"
	}

	var ownerID *uuid.UUID
	if v := r.FormValue("owner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner_id"})
			return
		}
		ownerID = &id
	}

	rep, err := h.svc.Upload(r.Context(), report.UploadRequest{
		Bureau:  bureau,
		OwnerID: ownerID,
		Data:    file,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.queue.EnqueueReportExtract(queue.ReportExtractPayload{ReportID: rep.ID.String()}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue extraction"})
		return
	}

	writeJSON(w, http.StatusCreated, rep)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	reports, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports, "count": len(reports)})
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	rep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), statusCacheKey(id))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statusResponse struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	ProcessingErrors *string `json:"processing_errors,omitempty"`
}

func (h *ReportHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	if h.cache != nil {
		var cached statusResponse
		if err := h.cache.Get(r.Context(), statusCacheKey(id), &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	rep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	resp := statusResponse{
		ID:               rep.ID.String(),
		Status:           rep.ExtractionStatus,
		ProcessingErrors: rep.ProcessingErrors,
	}
	if h.cache != nil {
		_ = h.cache.Set(r.Context(), statusCacheKey(id), resp, statusCacheTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}

type reprocessRequest struct {
	Force bool `json:"force"`
}

// Reprocess queues a fresh extraction run. History from earlier runs is
// kept; only the report's entities and status move.
func (h *ReportHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report ID"})
		return
	}

	var req reprocessRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}
	if !req.Force {
		switch rep.ExtractionStatus {
		case models.StatusProcessing:
			writeJSON(w, http.StatusConflict, map[string]string{"error": "report is already processing"})
			return
		case models.StatusCompleted:
			writeJSON(w, http.StatusConflict, map[string]string{"error": "report is completed, reprocessing requires force"})
			return
		}
	}

	if err := h.queue.EnqueueReportExtract(queue.ReportExtractPayload{
		ReportID: id.String(),
		Force:    req.Force,
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue extraction"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id.String(), "status": "queued"})
}

func statusCacheKey(id uuid.UUID) string {
	return "report:status:" + id.String()
}
