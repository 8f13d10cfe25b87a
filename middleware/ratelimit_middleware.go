package middleware

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/utils"
)

// AdmissionController is the slice of the rate limiter the middleware
// needs
type AdmissionController interface {
	CheckAdmission(tenant *models.TenantContext, op models.Operation) error
	RecordUsage(tenant *models.TenantContext, op models.Operation)
	RemainingQuota(tenant *models.TenantContext, op models.Operation) int
}

// RateLimitMiddleware enforces per-tenant admission for one operation
// class. Admission is checked without consuming quota; usage is recorded
// only after the wrapped handler reports success, so failed work is never
// charged.
type RateLimitMiddleware struct {
	limiter AdmissionController
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(limiter AdmissionController, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit wraps a handler with admission control for the given operation.
// Must run after RequireTenant.
func (m *RateLimitMiddleware) Limit(op models.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			resolved := GetTenantFromContext(ctx)
			if resolved == nil {
				m.logger.Error("rate limit middleware reached without a resolved tenant",
					zap.String("request_id", GetRequestIDFromContext(ctx)))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if err := m.limiter.CheckAdmission(resolved, op); err != nil {
				retryAfter := services.RetryAfter(err)
				m.logger.Info("request rate limited",
					zap.String("tenant_id", resolved.TenantID.String()),
					zap.String("operation", string(op)),
					zap.Int("retry_after", retryAfter))
				w.Header().Set("X-RateLimit-Remaining", "0")
				_ = utils.WriteTooManyRequests(w, "", retryAfter)
				return
			}

			// usage is charged the moment the handler commits a success
			// status, before headers flush, so the remaining-quota header
			// reflects this request
			recorder := &admissionRecorder{
				ResponseWriter: w,
				beforeFlush: func(status int) {
					if status < http.StatusBadRequest {
						m.limiter.RecordUsage(resolved, op)
					}
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.limiter.RemainingQuota(resolved, op)))
				},
			}
			next.ServeHTTP(recorder, r)
			recorder.finish()
		})
	}
}

// admissionRecorder intercepts the first status write so quota accounting
// and rate-limit headers happen before the response is committed
type admissionRecorder struct {
	http.ResponseWriter
	beforeFlush func(status int)
	wrote       bool
}

func (r *admissionRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.wrote = true
		r.beforeFlush(status)
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *admissionRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// finish covers handlers that return without writing anything
func (r *admissionRecorder) finish() {
	if !r.wrote {
		r.wrote = true
		r.beforeFlush(http.StatusOK)
	}
}
