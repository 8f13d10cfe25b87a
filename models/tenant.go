package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tier determines a tenant's quota parameters.
type Tier string

const (
	TierFree       Tier = "free"
	TierStandard   Tier = "standard"
	TierEnterprise Tier = "enterprise"
)

// Operation is a rate-limited operation kind. It forms part of the
// token bucket key together with the tenant ID.
type Operation string

const (
	OperationQuery  Operation = "query"
	OperationIngest Operation = "ingest"
)

// QuotaLimits holds the token bucket parameters for one operation.
type QuotaLimits struct {
	Capacity   float64 `json:"capacity"`
	RefillRate float64 `json:"refill_rate"` // tokens per second
}

// TierLimits returns the bucket parameters for a tier and operation.
// Unknown tiers fall back to the free tier.
func TierLimits(tier Tier, op Operation) QuotaLimits {
	limits, ok := tierTable[tier]
	if !ok {
		limits = tierTable[TierFree]
	}
	if q, ok := limits[op]; ok {
		return q
	}
	return QuotaLimits{Capacity: 5, RefillRate: 1}
}

var tierTable = map[Tier]map[Operation]QuotaLimits{
	TierFree: {
		OperationQuery:  {Capacity: 5, RefillRate: 1},
		OperationIngest: {Capacity: 2, RefillRate: 0.2},
	},
	TierStandard: {
		OperationQuery:  {Capacity: 60, RefillRate: 10},
		OperationIngest: {Capacity: 10, RefillRate: 1},
	},
	TierEnterprise: {
		OperationQuery:  {Capacity: 600, RefillRate: 100},
		OperationIngest: {Capacity: 100, RefillRate: 10},
	},
}

// TenantContext is the resolved identity of an API caller. It is immutable
// for the lifetime of a request; the tenant directory caches it with a TTL
// and invalidates it on revocation.
type TenantContext struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Name     string          `json:"name"`
	Tier     Tier            `json:"tier"`
	Config   json.RawMessage `json:"config,omitempty"` // opaque per-tenant settings
}

// Tenant is the persisted tenant record backing TenantContext resolution.
type Tenant struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Tier       Tier            `json:"tier" db:"tier"`
	APIKeyHash string          `json:"-" db:"api_key_hash"` // SHA-256 hex of the opaque API key
	Config     json.RawMessage `json:"config,omitempty" db:"config"`
	Revoked    bool            `json:"revoked" db:"revoked"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// Context converts the persisted record into the request-scoped identity.
func (t *Tenant) Context() *TenantContext {
	return &TenantContext{
		TenantID: t.ID,
		Name:     t.Name,
		Tier:     t.Tier,
		Config:   t.Config,
	}
}
