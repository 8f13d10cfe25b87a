package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

const testSecret = "test-secret"

// fakeRepository is an in-memory Repository for tests.
type fakeRepository struct {
	mu      sync.Mutex
	byKey   map[string]*models.Tenant
	byID    map[uuid.UUID]*models.Tenant
	failErr error
	lookups int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byKey: make(map[string]*models.Tenant),
		byID:  make(map[uuid.UUID]*models.Tenant),
	}
}

func (r *fakeRepository) add(t *models.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.APIKeyHash != "" {
		r.byKey[t.APIKeyHash] = t
	}
	r.byID[t.ID] = t
}

func (r *fakeRepository) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.failErr != nil {
		return nil, r.failErr
	}
	if t, ok := r.byKey[keyHash]; ok {
		return t, nil
	}
	return nil, services.NewDomainError(services.ErrorTypeNotFound, "tenant not found", nil)
}

func (r *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.failErr != nil {
		return nil, r.failErr
	}
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, services.NewDomainError(services.ErrorTypeNotFound, "tenant not found", nil)
}

func hashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func signToken(t *testing.T, tenantID uuid.UUID, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestDirectory(t *testing.T) (*Directory, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	cache := NewCache(64, 5*time.Minute)
	return NewDirectory(repo, cache, testSecret, zap.NewNop()), repo
}

func TestDirectory_ResolveAPIKey(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{
		ID:         uuid.New(),
		Name:       "acme",
		Tier:       models.TierStandard,
		APIKeyHash: hashKey("sk-acme-1"),
	}
	repo.add(record)

	tc, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-acme-1"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, tc.TenantID)
	assert.Equal(t, models.TierStandard, tc.Tier)
}

func TestDirectory_ResolveBearerToken(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{ID: uuid.New(), Name: "acme", Tier: models.TierFree}
	repo.add(record)

	tc, err := dir.Resolve(context.Background(), Credential{
		BearerToken: signToken(t, record.ID, testSecret),
	})
	require.NoError(t, err)
	assert.Equal(t, record.ID, tc.TenantID)
}

func TestDirectory_MissingCredential(t *testing.T) {
	dir, _ := newTestDirectory(t)

	_, err := dir.Resolve(context.Background(), Credential{})
	require.Error(t, err)
	assert.True(t, services.IsUnauthorizedError(err))
}

func TestDirectory_MalformedToken(t *testing.T) {
	dir, _ := newTestDirectory(t)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong signature", signToken(t, uuid.New(), "other-secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Resolve(context.Background(), Credential{BearerToken: tt.token})
			require.Error(t, err)
			assert.True(t, services.IsUnauthorizedError(err))
		})
	}
}

func TestDirectory_UnknownTenantIsForbidden(t *testing.T) {
	dir, _ := newTestDirectory(t)

	t.Run("unknown API key", func(t *testing.T) {
		_, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-unknown"})
		require.Error(t, err)
		assert.True(t, services.IsForbiddenError(err))
	})

	t.Run("valid token for unknown tenant", func(t *testing.T) {
		_, err := dir.Resolve(context.Background(), Credential{
			BearerToken: signToken(t, uuid.New(), testSecret),
		})
		require.Error(t, err)
		assert.True(t, services.IsForbiddenError(err))
	})
}

func TestDirectory_RepositoryFailureIsInternal(t *testing.T) {
	dir, repo := newTestDirectory(t)
	repo.failErr = services.WrapStorage("tenant lookup failed", assert.AnError)

	_, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-any"})
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))
	assert.False(t, services.IsForbiddenError(err))
}

func TestDirectory_RevokedTenantIsForbidden(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{
		ID:         uuid.New(),
		Tier:       models.TierFree,
		APIKeyHash: hashKey("sk-revoked"),
		Revoked:    true,
	}
	repo.add(record)

	_, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-revoked"})
	require.Error(t, err)
	assert.True(t, services.IsForbiddenError(err))
}

func TestDirectory_ResolutionIsCached(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{
		ID:         uuid.New(),
		Tier:       models.TierFree,
		APIKeyHash: hashKey("sk-cached"),
	}
	repo.add(record)

	for i := 0; i < 5; i++ {
		_, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-cached"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.lookups)
}

func TestDirectory_RevokeInvalidatesCache(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{
		ID:         uuid.New(),
		Tier:       models.TierFree,
		APIKeyHash: hashKey("sk-live"),
	}
	repo.add(record)

	_, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-live"})
	require.NoError(t, err)

	// Flag the record and revoke: the cached resolution must not survive.
	record.Revoked = true
	dir.Revoke(record.ID)

	_, err = dir.Resolve(context.Background(), Credential{APIKey: "sk-live"})
	require.Error(t, err)
	assert.True(t, services.IsForbiddenError(err))
}

func TestDirectory_ConcurrentResolution(t *testing.T) {
	dir, repo := newTestDirectory(t)
	record := &models.Tenant{
		ID:         uuid.New(),
		Name:       "acme",
		Tier:       models.TierStandard,
		APIKeyHash: hashKey("sk-race"),
	}
	repo.add(record)

	var wg sync.WaitGroup
	results := make([]*models.TenantContext, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tc, err := dir.Resolve(context.Background(), Credential{APIKey: "sk-race"})
			require.NoError(t, err)
			results[i] = tc
		}(i)
	}
	wg.Wait()

	// Every racer sees a complete, consistent identity.
	for _, tc := range results {
		require.NotNil(t, tc)
		assert.Equal(t, record.ID, tc.TenantID)
		assert.Equal(t, models.TierStandard, tc.Tier)
	}
}
