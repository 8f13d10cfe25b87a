package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/config"
	"github.com/vectorgate/vectorgate/handlers"
	"github.com/vectorgate/vectorgate/middleware"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/repositories"
	"github.com/vectorgate/vectorgate/repositories/postgres"
	"github.com/vectorgate/vectorgate/services/chunker"
	"github.com/vectorgate/vectorgate/services/jobs"
	"github.com/vectorgate/vectorgate/services/pipeline"
	"github.com/vectorgate/vectorgate/services/providers"
	"github.com/vectorgate/vectorgate/services/providers/openai"
	"github.com/vectorgate/vectorgate/services/ratelimit"
	"github.com/vectorgate/vectorgate/services/tenant"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Tenants repositories.TenantRepository
	Vectors repositories.VectorStore

	// Services
	Directory *tenant.Directory
	Limiter   *ratelimit.Limiter
	Pipeline  *pipeline.Service
	JobStore  *jobs.Store
	Executor  *jobs.Executor

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Handlers
	QueryHandler    *handlers.QueryHandler
	DocumentHandler *handlers.DocumentHandler
	JobHandler      *handlers.JobHandler
	HealthHandler   *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initTenancy(cfg)

	if err := deps.initPipeline(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := deps.initJobs(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize job executor: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, the schema and the
// repository layer.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos, err := factory.NewRepositories()
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	d.Tenants = repos.Tenants
	d.Vectors = repos.Vectors

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.VectorStore.LogString()),
		zap.String("table", cfg.VectorStore.Table),
		zap.Int("dimensions", cfg.VectorStore.Dimensions))

	return nil
}

// initTenancy wires the tenant directory, the rate limiter and their
// middleware.
func (d *Dependencies) initTenancy(cfg *config.Config) {
	cache := tenant.NewCache(cfg.Tenancy.CacheMaxSize, cfg.Tenancy.CacheTTL)
	d.Directory = tenant.NewDirectory(d.Tenants, cache, cfg.Tenancy.JWTSecret, d.Logger)

	if cfg.Tenancy.JWTSecret == "" {
		d.Logger.Warn("tenant JWT secret not configured, bearer tokens will be rejected")
	}

	resolver := &timeoutResolver{
		directory: d.Directory,
		timeout:   cfg.Tenancy.ResolveTimeout,
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(resolver, d.Logger)

	d.Limiter = ratelimit.NewLimiter(d.Logger)
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(d.Limiter, d.Logger)
}

// initPipeline wires the chunker, the provider adapter and the RAG pipeline.
func (d *Dependencies) initPipeline(cfg *config.Config) error {
	splitter, err := chunker.NewSplitter(cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("invalid chunking configuration: %w", err)
	}

	if cfg.Providers.OpenAI.APIKey == "" {
		d.Logger.Warn("no embedding provider API key configured")
	}
	adapter := openai.NewAdapter(providers.ProviderConfig{
		APIKey:          cfg.Providers.OpenAI.APIKey,
		BaseURL:         cfg.Providers.OpenAI.BaseURL,
		EmbeddingModel:  cfg.Providers.OpenAI.EmbeddingModel,
		GenerationModel: cfg.Providers.OpenAI.GenerationModel,
		Dimensions:      cfg.VectorStore.Dimensions,
		Timeout:         cfg.Providers.OpenAI.Timeout,
		MaxRetries:      cfg.Providers.OpenAI.MaxRetries,
	})

	d.Pipeline = pipeline.NewService(d.Vectors, adapter, adapter, splitter, d.Logger)
	d.Logger.Info("pipeline initialized",
		zap.String("embedding_model", cfg.Providers.OpenAI.EmbeddingModel),
		zap.String("generation_model", cfg.Providers.OpenAI.GenerationModel))
	return nil
}

// initJobs wires the in-memory job store and the worker pool executor.
func (d *Dependencies) initJobs(cfg *config.Config) error {
	d.JobStore = jobs.NewStore()

	executor, err := jobs.NewExecutor(d.JobStore, d.Pipeline, cfg.Jobs.Workers, cfg.Jobs.PollInterval, d.Logger)
	if err != nil {
		return err
	}
	d.Executor = executor

	d.Logger.Info("job executor initialized", zap.Int("workers", cfg.Jobs.Workers))
	return nil
}

// initHandlers wires the HTTP handlers onto the services.
func (d *Dependencies) initHandlers() {
	d.QueryHandler = handlers.NewQueryHandler(d.Pipeline, d.Logger)
	d.DocumentHandler = handlers.NewDocumentHandler(d.Pipeline, d.JobStore, d.Logger)
	d.JobHandler = handlers.NewJobHandler(&jobService{store: d.JobStore, executor: d.Executor}, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.Vectors, d.Logger)
}

// jobService combines the job store's reads with the executor's
// cancellation for the job handler.
type jobService struct {
	store    *jobs.Store
	executor *jobs.Executor
}

func (s *jobService) Get(tenantID, jobID uuid.UUID) (*models.Job, error) {
	return s.store.Get(tenantID, jobID)
}

func (s *jobService) List(tenantID uuid.UUID) []*models.Job {
	return s.store.List(tenantID)
}

func (s *jobService) Cancel(tenantID, jobID uuid.UUID) (*models.Job, error) {
	return s.executor.Cancel(tenantID, jobID)
}

// timeoutResolver bounds every tenant lookup with the configured resolve
// timeout so a slow database cannot stall the request path.
type timeoutResolver struct {
	directory *tenant.Directory
	timeout   time.Duration
}

func (r *timeoutResolver) Resolve(ctx context.Context, cred tenant.Credential) (*models.TenantContext, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.directory.Resolve(ctx, cred)
}

// Close gracefully shuts down all dependencies.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Executor != nil {
		d.Executor.Shutdown()
		d.Logger.Info("job executor stopped")
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
