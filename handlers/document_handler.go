package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/middleware"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/utils"
)

// BatchIngestRequest is the body of POST /documents/batch
type BatchIngestRequest struct {
	Documents []models.IngestRequest `json:"documents" validate:"required,min=1,dive"`
}

// IngestService defines the ingestion-side pipeline operations
type IngestService interface {
	Ingest(ctx context.Context, tenantID uuid.UUID, req models.IngestRequest) (*models.IngestSummary, error)
	DeleteDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error
}

// JobEnqueuer enqueues asynchronous ingestion jobs
type JobEnqueuer interface {
	Enqueue(tenantID uuid.UUID, jobType models.JobType, payload []models.IngestRequest) *models.Job
}

// DocumentHandler serves document ingestion and deletion
type DocumentHandler struct {
	pipeline IngestService
	queue    JobEnqueuer
	logger   *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(pipeline IngestService, queue JobEnqueuer, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		pipeline: pipeline,
		queue:    queue,
		logger:   logger,
	}
}

// HandleIngest handles POST /documents: synchronous single-document
// ingestion
func (h *DocumentHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	summary, err := h.pipeline.Ingest(r.Context(), resolved.TenantID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, summary)
}

// HandleBatchIngest handles POST /documents/batch: the documents are
// enqueued as a job and ingested asynchronously
func (h *DocumentHandler) HandleBatchIngest(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req BatchIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	job := h.queue.Enqueue(resolved.TenantID, models.JobTypeBatchIngest, req.Documents)

	h.logger.Info("batch ingestion enqueued",
		zap.String("tenant_id", resolved.TenantID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int("documents", len(req.Documents)))

	_ = utils.WriteAccepted(w, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// HandleDelete handles DELETE /documents/{id}
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	documentID := chi.URLParam(r, "id")
	if documentID == "" {
		_ = utils.WriteBadRequest(w, "Document id is required", nil)
		return
	}

	if err := h.pipeline.DeleteDocument(r.Context(), resolved.TenantID, documentID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
