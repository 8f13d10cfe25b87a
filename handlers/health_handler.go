package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/utils"
)

// StoreStatus is the slice of the vector store the health and index
// endpoints need
type StoreStatus interface {
	HealthCheck(ctx context.Context) error
	Config() models.VectorStoreConfig
}

// HealthHandler serves liveness, readiness and index descriptor reads
type HealthHandler struct {
	store  StoreStatus
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store StoreStatus, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz: process liveness only
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz: healthy only when the vector
// store answers
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"vector_store": "healthy"}
	status := "healthy"
	code := http.StatusOK

	if err := h.store.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		checks["vector_store"] = "unhealthy"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	_ = utils.WriteJSON(w, code, utils.SuccessResponse{Data: map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}})
}

// HandleIndex handles GET /index: a read-only descriptor of the store's
// table, dimensionality and index family
func (h *HealthHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Config()
	_ = utils.WriteOK(w, map[string]interface{}{
		"table":      cfg.Table,
		"dimensions": cfg.Dimensions,
		"index_type": cfg.IndexType,
	})
}
