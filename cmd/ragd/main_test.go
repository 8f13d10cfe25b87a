package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vectorgate/vectorgate/app"
	"github.com/vectorgate/vectorgate/config"
	"github.com/vectorgate/vectorgate/handlers"
	"github.com/vectorgate/vectorgate/middleware"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/routes"
	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/services/jobs"
	"github.com/vectorgate/vectorgate/services/ratelimit"
	"github.com/vectorgate/vectorgate/services/tenant"
)

func TestNewLogger(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Environment: "production",
			Observability: config.ObservabilityConfig{
				LogLevel:  "info",
				LogFormat: "json",
			},
		}
	}

	t.Run("default json logger", func(t *testing.T) {
		logger, err := newLogger(base())
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		cfg := base()
		cfg.Environment = "development"
		cfg.Observability.LogLevel = "debug"
		cfg.Observability.LogFormat = "text"

		logger, err := newLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := base()
		cfg.Observability.LogLevel = "noisy"

		logger, err := newLogger(cfg)
		assert.Error(t, err)
		assert.Nil(t, logger)
	})
}

// healthyStore reports a reachable vector store without a database.
type healthyStore struct{}

func (healthyStore) HealthCheck(context.Context) error { return nil }

func (healthyStore) Config() models.VectorStoreConfig {
	return models.VectorStoreConfig{Table: "chunks", Dimensions: 3, IndexType: models.IndexIVFFlat}
}

// rejectAllResolver rejects every credential so unauthenticated requests
// exercise the 401 path.
type rejectAllResolver struct{}

func (rejectAllResolver) Resolve(context.Context, tenant.Credential) (*models.TenantContext, error) {
	return nil, services.ErrUnauthorized
}

type noopQueryService struct{}

func (noopQueryService) Query(context.Context, uuid.UUID, string, models.QueryOptions) (*models.QueryResult, error) {
	return &models.QueryResult{}, nil
}

func (noopQueryService) Retrieve(context.Context, uuid.UUID, string, int) ([]models.ScoredChunk, error) {
	return nil, nil
}

type noopIngestService struct{}

func (noopIngestService) Ingest(_ context.Context, _ uuid.UUID, req models.IngestRequest) (*models.IngestSummary, error) {
	return &models.IngestSummary{DocumentID: req.DocumentID, Chunks: 1}, nil
}

func (noopIngestService) DeleteDocument(context.Context, uuid.UUID, string) error { return nil }

type noopJobService struct{}

func (noopJobService) Get(_, jobID uuid.UUID) (*models.Job, error) {
	return nil, services.NewDomainError(services.ErrorTypeNotFound, "job not found", nil)
}

func (noopJobService) List(uuid.UUID) []*models.Job { return nil }

func (noopJobService) Cancel(_, jobID uuid.UUID) (*models.Job, error) {
	return nil, services.NewDomainError(services.ErrorTypeNotFound, "job not found", nil)
}

func testDependencies(t *testing.T) *app.Dependencies {
	t.Helper()

	logger := zaptest.NewLogger(t)
	limiter := ratelimit.NewLimiter(logger)

	return &app.Dependencies{
		Logger:              logger,
		Limiter:             limiter,
		JobStore:            jobs.NewStore(),
		AuthMiddleware:      middleware.NewAuthMiddleware(rejectAllResolver{}, logger),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(limiter, logger),
		QueryHandler:        handlers.NewQueryHandler(noopQueryService{}, logger),
		DocumentHandler:     handlers.NewDocumentHandler(noopIngestService{}, jobs.NewStore(), logger),
		JobHandler:          handlers.NewJobHandler(noopJobService{}, logger),
		HealthHandler:       handlers.NewHealthHandler(healthyStore{}, logger),
	}
}

func TestServerStartup(t *testing.T) {
	deps := testDependencies(t)

	handler := routes.SetupRoutes(deps)
	require.NotNil(t, handler)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	t.Run("liveness", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Data["status"])
	})

	t.Run("readiness", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("api routes require a tenant", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/v1/index")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/nope")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
