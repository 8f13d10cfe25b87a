package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vectorgate/vectorgate/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// TenantKey is the context key for the resolved tenant
	TenantKey contextKey = "tenant"
)

// GetRequestIDFromContext retrieves the request ID from context. It falls
// back to the ID assigned by chi's RequestID middleware, which stores the
// value under its own key.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimiddleware.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetTenantFromContext retrieves the resolved tenant from context, or nil
// when no tenant has been resolved. Handlers behind the auth middleware
// can rely on a non-nil result.
func GetTenantFromContext(ctx context.Context) *models.TenantContext {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(*models.TenantContext); ok {
			return tenant
		}
	}
	return nil
}

// WithTenant adds a resolved tenant to the context
func WithTenant(ctx context.Context, tenant *models.TenantContext) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}
