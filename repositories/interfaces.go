package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/vectorgate/vectorgate/models"
)

// VectorStore persists chunk embeddings and answers similarity queries.
// All operations are tenant-scoped: a tenant can never read or delete
// another tenant's chunks. Reads are safe for unbounded concurrency;
// concurrent upserts of the same (document, chunk) key are last-write-wins
// atomic replaces.
type VectorStore interface {
	// EnsureSchema idempotently creates the backing table, embedding column
	// and configured index. Safe to call repeatedly, including concurrently
	// from multiple instances.
	EnsureSchema(ctx context.Context) error

	// Upsert writes or overwrites chunks keyed by (documentID, chunkID).
	// Any chunk whose embedding length mismatches the configured
	// dimensionality rejects the whole batch before anything is written.
	Upsert(ctx context.Context, tenantID uuid.UUID, chunks []models.Chunk) error

	// SimilaritySearch returns up to limit chunks ordered by descending
	// similarity to the query vector, ties broken by chunk id.
	// limit <= 0 is invalid input.
	SimilaritySearch(ctx context.Context, tenantID uuid.UUID, queryVector []float32, limit int, filter map[string]string) ([]models.ScoredChunk, error)

	// DeleteByDocument removes all chunks for a document; no-op when the
	// document is absent.
	DeleteByDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error

	// Config returns the store's immutable configuration
	Config() models.VectorStoreConfig
}

// TenantRepository handles tenant record operations
type TenantRepository interface {
	// Create persists a new tenant record
	Create(ctx context.Context, tenant *models.Tenant) error

	// GetByID retrieves a tenant by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)

	// GetByAPIKeyHash retrieves a tenant by the SHA-256 hex of its API key
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Tenant, error)

	// SetRevoked flips a tenant's revocation flag
	SetRevoked(ctx context.Context, id uuid.UUID, revoked bool) error
}

// Repositories bundles all repository instances
type Repositories struct {
	Tenants TenantRepository
	Vectors VectorStore
}
