package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/repositories"
	"github.com/vectorgate/vectorgate/services"
)

// TenantRepository implements repositories.TenantRepository over PostgreSQL
type TenantRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB, logger *zap.Logger) repositories.TenantRepository {
	return &TenantRepository{
		db:     db,
		logger: logger,
	}
}

const tenantColumns = `id, name, tier, api_key_hash, config, revoked, created_at, updated_at`

// Create inserts a new tenant record
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	query := `
		INSERT INTO tenants (id, name, tier, api_key_hash, config, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`

	config := tenant.Config
	if len(config) == 0 {
		config = []byte(`{}`)
	}

	if _, err := r.db.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Tier, tenant.APIKeyHash, config, tenant.Revoked,
	); err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to create tenant", err)
	}

	r.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("tier", string(tenant.Tier)))

	return nil
}

// GetByID retrieves a tenant by its identifier
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// GetByAPIKeyHash retrieves a tenant by the SHA-256 hash of its API key.
// Raw keys are never stored or queried.
func (r *TenantRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE api_key_hash = $1`
	return r.scanTenant(r.db.QueryRowContext(ctx, query, hash))
}

// SetRevoked flips a tenant's revocation flag
func (r *TenantRepository) SetRevoked(ctx context.Context, id uuid.UUID, revoked bool) error {
	query := `UPDATE tenants SET revoked = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, revoked)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to update tenant revocation", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to update tenant revocation", err)
	}
	if rows == 0 {
		return services.NewDomainError(services.ErrorTypeNotFound, "tenant not found", nil).
			WithDetail("tenant_id", id.String())
	}

	r.logger.Info("tenant revocation updated",
		zap.String("tenant_id", id.String()),
		zap.Bool("revoked", revoked))

	return nil
}

func (r *TenantRepository) scanTenant(row *sql.Row) (*models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Tier,
		&tenant.APIKeyHash,
		&tenant.Config,
		&tenant.Revoked,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "tenant not found", err)
	}
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStorage, "failed to load tenant", err)
	}
	return &tenant, nil
}

var _ repositories.TenantRepository = (*TenantRepository)(nil)
