package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// Credential is an unresolved API credential: an opaque API key or a
// bearer token, as presented by the caller.
type Credential struct {
	APIKey      string
	BearerToken string
}

// Empty reports whether no credential material was presented.
func (c Credential) Empty() bool {
	return c.APIKey == "" && c.BearerToken == ""
}

// hash returns the stable cache key for the credential.
func (c Credential) hash() string {
	var raw string
	switch {
	case c.APIKey != "":
		raw = "key:" + c.APIKey
	case c.BearerToken != "":
		raw = "jwt:" + c.BearerToken
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Repository is the persistence seam the directory needs; implemented by
// repositories/postgres. A missing tenant must surface as a not_found
// domain error: the directory converts not_found to a Forbidden denial and
// treats every other error as an infrastructure failure.
type Repository interface {
	// GetByAPIKeyHash retrieves a tenant by the SHA-256 hex of its API key
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Tenant, error)

	// GetByID retrieves a tenant by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// tokenClaims are the custom claims carried by bearer-token credentials.
type tokenClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Directory resolves API credentials to tenant identities, caching
// resolutions by credential hash with a bounded TTL. Revocation invalidates
// eagerly; TTL expiry invalidates lazily.
type Directory struct {
	repo      Repository
	cache     *Cache
	jwtSecret []byte
	logger    *zap.Logger
}

// NewDirectory creates a new Directory
func NewDirectory(repo Repository, cache *Cache, jwtSecret string, logger *zap.Logger) *Directory {
	return &Directory{
		repo:      repo,
		cache:     cache,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// Resolve maps a credential to its tenant identity. It returns an
// unauthorized domain error for an absent or malformed credential and a
// forbidden one for a well-formed credential whose tenant is unknown or
// revoked. Concurrent resolutions of the same credential are safe: each
// racer builds a complete TenantContext before publishing it to the cache.
func (d *Directory) Resolve(ctx context.Context, cred Credential) (*models.TenantContext, error) {
	if cred.Empty() {
		return nil, services.ErrMissingCredential
	}

	key := cred.hash()
	if tc := d.cache.Get(key); tc != nil {
		return tc, nil
	}

	var (
		record *models.Tenant
		err    error
	)
	switch {
	case cred.APIKey != "":
		record, err = d.resolveAPIKey(ctx, cred.APIKey)
	default:
		record, err = d.resolveBearerToken(ctx, cred.BearerToken)
	}
	if err != nil {
		return nil, err
	}

	if record.Revoked {
		d.logger.Warn("revoked tenant presented a credential",
			zap.String("tenant_id", record.ID.String()))
		return nil, services.ErrTenantRevoked
	}

	tc := record.Context()
	d.cache.Set(key, tc)

	d.logger.Debug("tenant resolved",
		zap.String("tenant_id", tc.TenantID.String()),
		zap.String("tier", string(tc.Tier)))

	return tc, nil
}

// Revoke eagerly drops every cached resolution for a tenant. The persisted
// revocation flag is owned by the control plane that manages tenant records;
// this only guarantees cached credentials stop resolving immediately.
func (d *Directory) Revoke(tenantID uuid.UUID) {
	d.cache.InvalidateTenant(tenantID)
	d.logger.Info("tenant resolutions invalidated",
		zap.String("tenant_id", tenantID.String()))
}

// resolveAPIKey looks the key up by its hash. An unknown key is a denial,
// not a malformed credential: the key shape itself carries no structure.
func (d *Directory) resolveAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.ErrMissingCredential
	}

	sum := sha256.Sum256([]byte(apiKey))
	record, err := d.repo.GetByAPIKeyHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrUnknownTenant
		}
		return nil, services.WrapInternal("tenant lookup failed", err)
	}
	return record, nil
}

// resolveBearerToken verifies the token signature and claims, then loads
// the tenant record to pick up current tier and revocation state.
func (d *Directory) resolveBearerToken(ctx context.Context, token string) (*models.Tenant, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return d.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		// Expired counts as malformed-for-admission: the caller must
		// re-authenticate, not retry with the same token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.NewDomainError(services.ErrorTypeUnauthorized, "authentication token expired", err)
		}
		return nil, services.NewDomainError(services.ErrorTypeUnauthorized, "malformed authentication token", err)
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeUnauthorized, "token is missing a valid tenant id", err)
	}

	record, err := d.repo.GetByID(ctx, tenantID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrUnknownTenant
		}
		return nil, services.WrapInternal("tenant lookup failed", err)
	}
	return record, nil
}
