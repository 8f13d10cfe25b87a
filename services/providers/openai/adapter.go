package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vectorgate/vectorgate/services/providers"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultDimensions = 1536
)

// Adapter implements providers.Embedder and providers.Generator against
// any OpenAI-compatible API. Transient failures (429, 5xx, connection
// errors) are retried with exponential backoff; everything else fails
// immediately.
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewAdapter creates a new adapter for an OpenAI-compatible endpoint
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Dimensions == 0 {
		config.Dimensions = defaultDimensions
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "openai"
}

// Dimensions returns the dimensionality of produced vectors
func (a *Adapter) Dimensions() int {
	return a.config.Dimensions
}

// Embed embeds a batch of texts in a single API call. The returned slice
// is ordered to match the input regardless of the order the API answers in.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingsRequest{
		Model: a.config.EmbeddingModel,
		Input: texts,
	}

	var resp embeddingsResponse
	if err := a.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, providers.NewProviderError(a.Name(), "INCOMPLETE_RESPONSE",
			fmt.Sprintf("requested %d embeddings, got %d", len(texts), len(resp.Data)), 0, false, nil)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, providers.NewProviderError(a.Name(), "INVALID_RESPONSE",
				fmt.Sprintf("embedding index %d out of range", item.Index), 0, false, nil)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, providers.NewProviderError(a.Name(), "INCOMPLETE_RESPONSE",
				fmt.Sprintf("no embedding returned for input %d", i), 0, false, nil)
		}
	}

	return vectors, nil
}

// Generate completes a prompt via the chat completions endpoint
func (a *Adapter) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model: a.config.GenerationModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	if maxTokens > 0 {
		reqBody.MaxTokens = &maxTokens
	}

	var resp chatResponse
	if err := a.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "no completion choices returned", 0, false, nil)
	}

	return resp.Choices[0].Message.Content, nil
}

// IsAvailable checks if the provider is currently reachable
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// post executes a JSON POST with retry. The request body is rebuilt per
// attempt. Non-retryable failures are wrapped in backoff.Permanent so the
// loop stops immediately.
func (a *Adapter) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.config.MaxRetries)),
		ctx,
	)

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
		for k, v := range a.config.Headers {
			httpReq.Header.Set(k, v)
		}

		httpResp, err := a.httpClient.Do(httpReq)
		if err != nil {
			// connection errors are transient unless the context is done
			if ctx.Err() != nil {
				return backoff.Permanent(providers.NewProviderError(a.Name(), "CANCELLED", "request cancelled", 0, false, err))
			}
			return providers.NewProviderError(a.Name(), "HTTP_ERROR", "request failed", 0, true, err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, true, err)
		}

		if httpResp.StatusCode != http.StatusOK {
			provErr := a.errorFromResponse(httpResp.StatusCode, body)
			if provErr.Retryable {
				return provErr
			}
			return backoff.Permanent(provErr)
		}

		if err := json.Unmarshal(body, respBody); err != nil {
			return backoff.Permanent(providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err))
		}

		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}

	return nil
}

// errorFromResponse maps an API error body to a ProviderError. 429 and
// 5xx are retryable; 4xx are not.
func (a *Adapter) errorFromResponse(statusCode int, body []byte) *providers.ProviderError {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "API_ERROR", string(body), statusCode, retryable, nil)
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// API request/response types

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data  []embeddingItem `json:"data"`
	Model string          `json:"model"`
	Usage usage           `json:"usage"`
}

type embeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

var (
	_ providers.Embedder  = (*Adapter)(nil)
	_ providers.Generator = (*Adapter)(nil)
)
