package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*Limiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	limiter := NewLimiter(zap.NewNop())
	limiter.now = clock.Now
	return limiter, clock
}

func freeTenant() *models.TenantContext {
	return &models.TenantContext{
		TenantID: uuid.New(),
		Name:     "acme",
		Tier:     models.TierFree,
	}
}

func TestLimiter_AdmissionWithinCapacity(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	// Free tier query bucket: capacity 5, refill 1/s.
	for i := 0; i < 5; i++ {
		err := limiter.CheckAdmission(tenant, models.OperationQuery)
		require.NoError(t, err, "admission %d should succeed", i+1)
		limiter.RecordUsage(tenant, models.OperationQuery)
	}

	err := limiter.CheckAdmission(tenant, models.OperationQuery)
	require.Error(t, err)
	assert.True(t, services.IsRateLimitError(err))
	assert.GreaterOrEqual(t, services.RetryAfter(err), 1)
}

func TestLimiter_RefillAfterWait(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	tenant := freeTenant()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
		limiter.RecordUsage(tenant, models.OperationQuery)
	}
	require.Error(t, limiter.CheckAdmission(tenant, models.OperationQuery))

	clock.Advance(time.Second)
	assert.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
}

func TestLimiter_CheckDoesNotConsume(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	// Repeated admission checks without RecordUsage never drain the bucket.
	for i := 0; i < 50; i++ {
		require.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
	}
	assert.Equal(t, 5, limiter.RemainingQuota(tenant, models.OperationQuery))
}

func TestLimiter_HandlerFailureDoesNotCharge(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	require.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
	// Downstream failed: RecordUsage is not called.
	assert.Equal(t, 5, limiter.RemainingQuota(tenant, models.OperationQuery))

	require.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
	limiter.RecordUsage(tenant, models.OperationQuery)
	assert.Equal(t, 4, limiter.RemainingQuota(tenant, models.OperationQuery))
}

func TestLimiter_TokensNeverExceedCapacity(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	tenant := freeTenant()

	limiter.RecordUsage(tenant, models.OperationQuery)
	clock.Advance(time.Hour)
	assert.Equal(t, 5, limiter.RemainingQuota(tenant, models.OperationQuery))
}

func TestLimiter_TokensFlooredAtZero(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	for i := 0; i < 10; i++ {
		limiter.RecordUsage(tenant, models.OperationQuery)
	}
	assert.Equal(t, 0, limiter.RemainingQuota(tenant, models.OperationQuery))
}

func TestLimiter_OperationsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	// Drain the query bucket; the ingest bucket is unaffected.
	for i := 0; i < 5; i++ {
		limiter.RecordUsage(tenant, models.OperationQuery)
	}
	require.Error(t, limiter.CheckAdmission(tenant, models.OperationQuery))
	assert.NoError(t, limiter.CheckAdmission(tenant, models.OperationIngest))
}

func TestLimiter_TenantsAreIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	a := freeTenant()
	b := freeTenant()

	for i := 0; i < 5; i++ {
		limiter.RecordUsage(a, models.OperationQuery)
	}
	require.Error(t, limiter.CheckAdmission(a, models.OperationQuery))
	assert.NoError(t, limiter.CheckAdmission(b, models.OperationQuery))
}

func TestLimiter_RetryAfterReflectsRefillRate(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := &models.TenantContext{
		TenantID: uuid.New(),
		Tier:     models.TierFree,
	}

	// Free tier ingest: capacity 2, refill 0.2/s -> an empty bucket needs
	// 5 seconds for the next token.
	limiter.RecordUsage(tenant, models.OperationIngest)
	limiter.RecordUsage(tenant, models.OperationIngest)

	err := limiter.CheckAdmission(tenant, models.OperationIngest)
	require.Error(t, err)
	assert.Equal(t, 5, services.RetryAfter(err))
}

func TestLimiter_ResetTenantRecreatesBuckets(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	tenant := freeTenant()

	for i := 0; i < 5; i++ {
		limiter.RecordUsage(tenant, models.OperationQuery)
	}
	require.Error(t, limiter.CheckAdmission(tenant, models.OperationQuery))

	// Simulates re-tiering: quotas restart from the tier table.
	limiter.ResetTenant(tenant.TenantID)
	tenant.Tier = models.TierStandard
	assert.NoError(t, limiter.CheckAdmission(tenant, models.OperationQuery))
	assert.Equal(t, 60, limiter.RemainingQuota(tenant, models.OperationQuery))
}

func TestLimiter_ConcurrentAdmission(t *testing.T) {
	limiter := NewLimiter(zap.NewNop())
	tenant := &models.TenantContext{TenantID: uuid.New(), Tier: models.TierEnterprise}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := limiter.CheckAdmission(tenant, models.OperationQuery); err == nil {
					limiter.RecordUsage(tenant, models.OperationQuery)
				}
				limiter.RemainingQuota(tenant, models.OperationQuery)
			}
		}()
	}
	wg.Wait()

	remaining := limiter.RemainingQuota(tenant, models.OperationQuery)
	assert.GreaterOrEqual(t, remaining, 0)
	assert.LessOrEqual(t, remaining, 600)
}
