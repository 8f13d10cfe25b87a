package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Every error
// type maps to a single stable status; internal detail is logged, not
// leaked.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, err.Error()); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsUnauthorizedError(err):
		if err := utils.WriteUnauthorized(w, err.Error()); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsForbiddenError(err):
		if err := utils.WriteForbidden(w, err.Error()); err != nil {
			logger.Error("failed to write forbidden response", zap.Error(err))
		}

	case services.IsRateLimitError(err):
		if err := utils.WriteTooManyRequests(w, err.Error(), services.RetryAfter(err)); err != nil {
			logger.Error("failed to write rate limit response", zap.Error(err))
		}

	case services.IsEmbeddingError(err), services.IsGenerationError(err), services.IsExternalError(err):
		// capability failures map to 502 without internal detail
		logger.Warn("upstream capability failure", zap.Error(err))
		if err := utils.WriteBadGateway(w, "Upstream provider error"); err != nil {
			logger.Error("failed to write bad gateway response", zap.Error(err))
		}

	case services.IsStorageError(err):
		logger.Error("vector store failure", zap.Error(err))
		if err := utils.WriteServiceUnavailable(w, "Storage temporarily unavailable"); err != nil {
			logger.Error("failed to write service unavailable response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
