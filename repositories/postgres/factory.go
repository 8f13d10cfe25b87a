package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/config"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/repositories"
	"github.com/vectorgate/vectorgate/services"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	cfg    models.VectorStoreConfig
	logger *zap.Logger
}

// NewRepositoryFactory opens the database connection and prepares the
// repository constructors. Call InitSchema before serving traffic.
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.VectorStore, logger)
	if err != nil {
		return nil, err
	}

	return &RepositoryFactory{
		db: db,
		cfg: models.VectorStoreConfig{
			Table:      cfg.VectorStore.Table,
			Dimensions: cfg.VectorStore.Dimensions,
			IndexType:  cfg.VectorStore.IndexType,
		},
		logger: logger,
	}, nil
}

// InitSchema creates the tenants table and the vector store schema.
// All statements are create-if-absent so repeated startups converge.
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id           UUID PRIMARY KEY,
			name         TEXT NOT NULL,
			tier         TEXT NOT NULL DEFAULT 'free',
			api_key_hash TEXT NOT NULL UNIQUE,
			config       JSONB NOT NULL DEFAULT '{}',
			revoked      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := f.db.ExecContext(ctx, stmt); err != nil {
			return services.NewDomainError(services.ErrorTypeStorage, "failed to initialize tenant schema", err)
		}
	}

	store, err := NewVectorStore(f.db, f.cfg, f.logger)
	if err != nil {
		return err
	}
	return store.EnsureSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() (*repositories.Repositories, error) {
	store, err := NewVectorStore(f.db, f.cfg, f.logger)
	if err != nil {
		return nil, err
	}
	return &repositories.Repositories{
		Tenants: NewTenantRepository(f.db, f.logger),
		Vectors: store,
	}, nil
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
