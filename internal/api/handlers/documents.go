package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/jobs"
)

// DocumentsHandler enqueues asynchronous ingestion of stored documents.
type DocumentsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewDocumentsHandler creates a documents handler.
func NewDocumentsHandler(publisher jobs.Publisher, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{publisher: publisher, log: log}
}

// EnqueueIngest handles POST /api/documents/parse: schedule ingestion of a
// document already uploaded to GCS.
func (h *DocumentsHandler) EnqueueIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
		GCSURI     string `json:"gcs_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DocumentID == "" || req.GCSURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "document_id and gcs_uri are required")
		return
	}

	ctx := r.Context()
	job := &jobs.IngestDocumentJob{
		UserID:     middleware.UserID(ctx),
		DocumentID: req.DocumentID,
		GCSURI:     req.GCSURI,
	}

	if err := h.publisher.PublishIngestDocument(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("document_id", req.DocumentID).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": req.DocumentID,
		"status":      string(job.Status),
	})
}
