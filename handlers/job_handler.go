package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/middleware"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/utils"
)

// JobService exposes job state reads and cancellation
type JobService interface {
	Get(tenantID, jobID uuid.UUID) (*models.Job, error)
	List(tenantID uuid.UUID) []*models.Job
	Cancel(tenantID, jobID uuid.UUID) (*models.Job, error)
}

// JobHandler serves job inspection and cancellation
type JobHandler struct {
	jobs   JobService
	logger *zap.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// HandleGet handles GET /jobs/{id}
func (h *JobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job id", nil)
		return
	}

	job, err := h.jobs.Get(resolved.TenantID, jobID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	// payload can be large; state reads return lifecycle data only
	job.Payload = nil
	_ = utils.WriteOK(w, job)
}

// HandleList handles GET /jobs
func (h *JobHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	jobs := h.jobs.List(resolved.TenantID)
	for _, job := range jobs {
		job.Payload = nil
	}
	_ = utils.WriteOK(w, map[string]interface{}{"jobs": jobs})
}

// HandleCancel handles DELETE /jobs/{id}. Cancelling a terminal job
// is a no-op that reports the existing state.
func (h *JobHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job id", nil)
		return
	}

	job, err := h.jobs.Cancel(resolved.TenantID, jobID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("job cancellation requested",
		zap.String("tenant_id", resolved.TenantID.String()),
		zap.String("job_id", jobID.String()),
		zap.String("status", string(job.Status)))

	job.Payload = nil
	_ = utils.WriteOK(w, job)
}
