package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// bucketKey identifies one token bucket. Buckets are never shared across
// tenants or operations.
type bucketKey struct {
	TenantID  uuid.UUID
	Operation models.Operation
}

// bucket holds per-key token state. Each bucket carries its own mutex so
// admission checks for different tenants or operations never contend.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// refill advances the token count by the time elapsed since the last
// refill, capped at capacity. Caller must hold b.mu.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Limiter is a per-tenant, per-operation token bucket rate limiter.
// Buckets are created lazily on first use with capacity and refill rate
// derived from the tenant's tier, and stay fixed for the bucket's lifetime.
//
// Admission does not consume: CheckAdmission only verifies at least one
// token is available, and RecordUsage consumes after the guarded operation
// has actually succeeded downstream. A handler failure between the two must
// therefore never reduce remaining quota.
type Limiter struct {
	mu      sync.RWMutex // guards the buckets map, not the buckets
	buckets map[bucketKey]*bucket
	now     func() time.Time
	logger  *zap.Logger
}

// NewLimiter creates a new Limiter
func NewLimiter(logger *zap.Logger) *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
		logger:  logger,
	}
}

// bucketFor returns the bucket for (tenant, op), creating it from the
// tenant's tier on first use.
func (l *Limiter) bucketFor(tenant *models.TenantContext, op models.Operation) *bucket {
	key := bucketKey{TenantID: tenant.TenantID, Operation: op}

	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}

	limits := models.TierLimits(tenant.Tier, op)
	b = &bucket{
		capacity:   limits.Capacity,
		tokens:     limits.Capacity, // full on creation
		refillRate: limits.RefillRate,
		lastRefill: l.now(),
	}
	l.buckets[key] = b

	l.logger.Debug("token bucket created",
		zap.String("tenant_id", tenant.TenantID.String()),
		zap.String("operation", string(op)),
		zap.Float64("capacity", limits.Capacity),
		zap.Float64("refill_rate", limits.RefillRate))

	return b
}

// CheckAdmission verifies the tenant has at least one token available for
// the operation without consuming it. When the bucket is empty it returns a
// rate_limit domain error carrying a retry_after detail in whole seconds
// (minimum 1).
func (l *Limiter) CheckAdmission(tenant *models.TenantContext, op models.Operation) error {
	b := l.bucketFor(tenant, op)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(l.now())
	if b.tokens >= 1 {
		return nil
	}

	retryAfter := 1
	if b.refillRate > 0 {
		retryAfter = int(math.Ceil((1 - b.tokens) / b.refillRate))
	}
	if retryAfter < 1 {
		retryAfter = 1
	}

	return services.NewDomainError(services.ErrorTypeRateLimit, "rate limit exceeded", nil).
		WithDetail("retry_after", retryAfter).
		WithDetail("operation", string(op))
}

// RecordUsage consumes exactly one token. Call it only after the admitted
// operation completed successfully downstream; calling it earlier would
// charge quota for work that was never done.
func (l *Limiter) RecordUsage(tenant *models.TenantContext, op models.Operation) {
	b := l.bucketFor(tenant, op)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(l.now())
	b.tokens = math.Max(0, b.tokens-1)
}

// RemainingQuota returns the floor of the tenant's current refreshed token
// count for the operation. Refilling here is idempotent: it depends only on
// elapsed time.
func (l *Limiter) RemainingQuota(tenant *models.TenantContext, op models.Operation) int {
	b := l.bucketFor(tenant, op)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(l.now())
	return int(math.Floor(b.tokens))
}

// ResetTenant drops all buckets for a tenant so they are recreated from the
// current tier on next use. Required after re-tiering, since bucket
// parameters are fixed at creation.
func (l *Limiter) ResetTenant(tenantID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.buckets {
		if key.TenantID == tenantID {
			delete(l.buckets, key)
		}
	}
}
