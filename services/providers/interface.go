package providers

import (
	"context"
	"fmt"
	"time"
)

// Embedder turns text into dense vectors. Implementations must preserve
// order: result[i] is the embedding of texts[i].
type Embedder interface {
	// Embed embeds a batch of texts in a single provider call
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors
	Dimensions() int
}

// Generator produces an answer grounded in retrieved context
type Generator interface {
	// Generate completes a prompt. maxTokens <= 0 uses the provider default.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ProviderConfig holds common provider configuration
type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	GenerationModel string
	Dimensions      int
	Timeout         time.Duration
	MaxRetries      int
	Headers         map[string]string
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s error [%s]: %s (status: %d)", e.Provider, e.Code, e.Message, e.StatusCode)
}

// Unwrap implements errors.Unwrap
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        err,
	}
}
