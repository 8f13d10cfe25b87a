package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeEmbedding    ErrorType = "embedding"
	ErrorTypeGeneration   ErrorType = "generation"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authentication errors (missing or malformed credential)
	ErrUnauthorized      = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrMissingCredential = NewDomainError(ErrorTypeUnauthorized, "missing API key or bearer token", nil)
	ErrMalformedToken    = NewDomainError(ErrorTypeUnauthorized, "malformed authentication token", nil)

	// Authorization errors (well-formed credential, denied tenant)
	ErrForbidden     = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrTenantRevoked = NewDomainError(ErrorTypeForbidden, "tenant access revoked", nil)
	ErrUnknownTenant = NewDomainError(ErrorTypeForbidden, "unknown tenant", nil)

	// Rate limit errors
	ErrRateLimited = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)

	// Validation errors
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuery         = NewDomainError(ErrorTypeValidation, "query text cannot be empty", nil)
	ErrEmptyDocument      = NewDomainError(ErrorTypeValidation, "document text cannot be empty", nil)
	ErrInvalidLimit       = NewDomainError(ErrorTypeValidation, "retrieval limit must be positive", nil)
	ErrDimensionMismatch  = NewDomainError(ErrorTypeValidation, "embedding dimensionality mismatch", nil)
	ErrInvalidStoreConfig = NewDomainError(ErrorTypeValidation, "invalid vector store configuration", nil)

	// Not found errors
	ErrJobNotFound      = NewDomainError(ErrorTypeNotFound, "job not found", nil)
	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)

	// Capability errors
	ErrEmbeddingFailed  = NewDomainError(ErrorTypeEmbedding, "embedding generation failed", nil)
	ErrGenerationFailed = NewDomainError(ErrorTypeGeneration, "answer generation failed", nil)

	// Storage errors
	ErrStoreConnectionFailed = NewDomainError(ErrorTypeStorage, "vector store connection failed", nil)
	ErrStorageFailure        = NewDomainError(ErrorTypeStorage, "vector store operation failed", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsEmbeddingError checks if an error is an embedding capability error
func IsEmbeddingError(err error) bool {
	return GetErrorType(err) == ErrorTypeEmbedding
}

// IsGenerationError checks if an error is a generation capability error
func IsGenerationError(err error) bool {
	return GetErrorType(err) == ErrorTypeGeneration
}

// IsStorageError checks if an error is a vector store error
func IsStorageError(err error) bool {
	return GetErrorType(err) == ErrorTypeStorage
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// RetryAfter returns the retry_after detail of a rate limit error in
// seconds, or 0 when the error carries none.
func RetryAfter(err error) int {
	details := GetErrorDetails(err)
	if details == nil {
		return 0
	}
	if v, ok := details["retry_after"].(int); ok {
		return v
	}
	return 0
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapStorage wraps an error as a vector store error
func WrapStorage(message string, err error) error {
	return NewDomainError(ErrorTypeStorage, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
