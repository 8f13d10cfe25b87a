package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/middleware"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/utils"
)

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query   string              `json:"query" validate:"required"`
	Options models.QueryOptions `json:"options"`
}

// QueryService defines the query-side pipeline operations
type QueryService interface {
	Query(ctx context.Context, tenantID uuid.UUID, text string, opts models.QueryOptions) (*models.QueryResult, error)
	Retrieve(ctx context.Context, tenantID uuid.UUID, text string, limit int) ([]models.ScoredChunk, error)
}

// QueryHandler serves the query and retrieval endpoints
type QueryHandler struct {
	pipeline QueryService
	logger   *zap.Logger
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(pipeline QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// HandleQuery handles POST /query
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.pipeline.Query(r.Context(), resolved.TenantID, req.Query, req.Options)
	if err != nil {
		// generation failure still surfaces the retrieved sources
		if services.IsGenerationError(err) && result != nil {
			_ = utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse{
				Error:   "generation_failed",
				Message: "Answer generation failed; retrieved sources are included",
				Details: map[string]interface{}{"sources": result.Sources},
			})
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleRetrieve handles GET /query/retrieve?q=&limit=. A missing q is a
// bad request; an absent or unparsable limit falls back to the default.
func (h *QueryHandler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetTenantFromContext(r.Context())
	if resolved == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		_ = utils.WriteBadRequest(w, "Query parameter 'q' is required", nil)
		return
	}

	limit := models.DefaultRetrievalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sources, err := h.pipeline.Retrieve(r.Context(), resolved.TenantID, query, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, models.QueryResult{Sources: sources})
}
