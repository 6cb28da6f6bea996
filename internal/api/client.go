package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lamim/paperforge/internal/config"
)

const (
	// DefaultHTTPTimeout is the default timeout for one request when the model sets none
	DefaultHTTPTimeout = 300 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// DefaultMaxBackoffDuration caps a single backoff sleep
	DefaultMaxBackoffDuration = 120 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Observer receives request telemetry; metrics.Collector implements it
type Observer interface {
	ObserveAPIRequest(model, status string, duration time.Duration)
	ObserveRateLimitWait(model string, wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAPIRequest(string, string, time.Duration) {}
func (nopObserver) ObserveRateLimitWait(string, time.Duration)      {}

// Client handles HTTP requests to OpenAI-compatible API endpoints
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	logger          *slog.Logger
	observer        Observer
	baseRetryDelay  time.Duration
}

// NewClient creates a new API client
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		// Per-request deadlines come from the model config via the context
		httpClient:      &http.Client{},
		rateLimiterPool: NewRateLimiterPool(logger),
		logger:          logger,
		observer:        nopObserver{},
		baseRetryDelay:  DefaultBaseRetryDelay,
	}
}

// SetObserver installs a telemetry observer
func (c *Client) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// ChatCompletion sends a chat completion request to the specified model.
// Streaming and JSON mode follow the model config. Rate limits and server
// errors are retried with exponential backoff.
func (c *Client) ChatCompletion(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
) (*ChatCompletionResponse, error) {
	// Apply per-model HTTP timeout
	timeout := time.Duration(modelCfg.HTTPTimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Generate a unique model ID for rate limiting
	modelID := fmt.Sprintf("%s:%s", modelCfg.BaseURL, modelCfg.ModelName)

	wait, err := c.rateLimiterPool.Wait(ctx, modelID, modelCfg.RateLimitPerMinute)
	if err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	c.observer.ObserveRateLimitWait(modelCfg.ModelName, wait)

	req := ChatCompletionRequest{
		Model:       modelCfg.ModelName,
		Messages:    messages,
		Temperature: modelCfg.Temperature,
		TopP:        modelCfg.TopP,
		MaxTokens:   modelCfg.MaxOutputTokens,
		N:           1,
		Stream:      modelCfg.UseStreaming,
	}
	if modelCfg.UseJSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	maxAttempts := modelCfg.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxRetries
	}
	maxBackoff := DefaultMaxBackoffDuration
	if modelCfg.MaxBackoffSeconds > 0 {
		maxBackoff = time.Duration(modelCfg.MaxBackoffSeconds) * time.Second
	}

	// Retry with exponential backoff; a negative budget retries until the context ends
	var lastErr error
	for attempt := 0; maxAttempts < 0 || attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			sleepDuration := c.backoff(attempt, lastErr, maxBackoff)

			c.logger.Warn("Retrying API request",
				"attempt", attempt,
				"max_retries", maxAttempts,
				"backoff", sleepDuration,
				"model", modelCfg.ModelName,
				"is_rate_limit", IsRateLimit(lastErr))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, modelCfg.BaseURL, apiKey, req)
		c.observer.ObserveAPIRequest(modelCfg.ModelName, statusLabel(err), time.Since(start))
		if err == nil {
			c.logger.Debug("API request completed",
				"model", modelCfg.ModelName,
				"streaming", req.Stream,
				"duration_ms", time.Since(start).Milliseconds(),
				"completion_tokens", resp.Usage.CompletionTokens)
			return resp, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// backoff returns 2^(n-1) * base for ordinary errors and 3^n * base for rate limits,
// capped and jittered by ±10%
func (c *Client) backoff(attempt int, lastErr error, maxBackoff time.Duration) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay
	if IsRateLimit(lastErr) {
		backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter := time.Duration(float64(backoff) * 0.1 * (2*float64(time.Now().UnixNano()%100)/100 - 1))
	return backoff + jitter
}

func (c *Client) doRequest(
	ctx context.Context,
	baseURL string,
	apiKey string,
	req ChatCompletionRequest,
) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(baseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	} else {
		c.logger.Debug("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The caller's deadline or cancellation is final
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, newAPIError(httpResp.StatusCode, respBody)
	}

	if req.Stream {
		return c.readStream(httpResp.Body)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned in response")
	}

	return &resp, nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	retryable := isStatusCodeRetryable(statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			Message:    errResp.Error.Message,
			StatusCode: statusCode,
			Type:       errResp.Error.Type,
			Code:       errResp.Error.Code,
			Retryable:  retryable,
		}
	}

	return &APIError{
		Message:    fmt.Sprintf("API request failed with status %d: %s", statusCode, string(body)),
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return "error"
}

// IsRetryable reports whether err is an API error worth retrying
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable
}

// IsRateLimit reports whether err is an HTTP 429
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}
