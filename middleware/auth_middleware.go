package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/services/tenant"
	"github.com/vectorgate/vectorgate/utils"
)

// TenantResolver resolves a request credential to a tenant
type TenantResolver interface {
	Resolve(ctx context.Context, cred tenant.Credential) (*models.TenantContext, error)
}

// AuthMiddleware resolves the calling tenant from an X-API-Key header or
// an Authorization bearer token and stores it in the request context.
type AuthMiddleware struct {
	resolver TenantResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver TenantResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// apiKeyHeader carries the opaque per-tenant API key
const apiKeyHeader = "X-API-Key"

// RequireTenant rejects requests without a resolvable, active tenant.
// Missing or malformed credentials map to 401; unknown or revoked tenants
// map to 403.
func (m *AuthMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		cred := extractCredential(r)
		if cred.Empty() {
			m.logger.Warn("missing credential",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing API key or bearer token")
			return
		}

		resolved, err := m.resolver.Resolve(ctx, cred)
		if err != nil {
			switch {
			case services.IsUnauthorizedError(err):
				m.logger.Warn("credential rejected",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w, "Invalid or expired credential")
			case services.IsForbiddenError(err):
				m.logger.Warn("tenant denied",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteForbidden(w, "Tenant access denied")
			default:
				m.logger.Error("tenant resolution failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
			}
			return
		}

		m.logger.Debug("tenant resolved",
			zap.String("request_id", requestID),
			zap.String("tenant_id", resolved.TenantID.String()),
			zap.String("tier", string(resolved.Tier)))

		next.ServeHTTP(w, r.WithContext(WithTenant(ctx, resolved)))
	})
}

// extractCredential pulls the credential from the request. The API key
// header takes precedence over a bearer token when both are present.
func extractCredential(r *http.Request) tenant.Credential {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return tenant.Credential{APIKey: key}
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return tenant.Credential{BearerToken: token}
	}
	return tenant.Credential{}
}
