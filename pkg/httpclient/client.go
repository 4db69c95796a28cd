// Package httpclient is the JSON-over-HTTP request layer used by the
// aggregator client: default JSON headers, optional bearer auth, non-2xx
// responses surfaced as *HTTPError, and an opt-in bounded retry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"agentdex/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// RequestOption modifies an outgoing request
type RequestOption func(*http.Request)

// ClientOption modifies the HTTP client
type ClientOption func(*HTTPClient)

// Middleware wraps an http.RoundTripper
type Middleware func(http.RoundTripper) http.RoundTripper

// HTTPError is returned for any non-2xx response. Body holds the raw response text.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Method     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// MetricsCollector receives per-request measurements
type MetricsCollector interface {
	RecordRequestDuration(method, path string, statusCode int, duration time.Duration)
	RecordRequestCount(method, path string, statusCode int)
	RecordRequestError(method, path string)
}

// RetryConfig configures the retry behavior. MaxRetries of 0 disables retries.
type RetryConfig struct {
	MaxRetries           int
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	Multiplier           float64
	MaxElapsedTime       time.Duration
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns a single bounded retry for transient failures
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:           1,
		InitialInterval:      200 * time.Millisecond,
		MaxInterval:          2 * time.Second,
		Multiplier:           2.0,
		MaxElapsedTime:       10 * time.Second,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// HTTPClient issues JSON requests against a single base URL
type HTTPClient struct {
	httpClient     *http.Client
	baseURL        string
	defaultHeaders map[string]string
	retryConfig    *RetryConfig
	middlewares    []Middleware
	metrics        MetricsCollector
}

// NewHTTPClient creates a new HTTPClient with the given options
func NewHTTPClient(options ...ClientOption) *HTTPClient {
	client := &HTTPClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		metrics: &NoopMetricsCollector{},
	}

	for _, option := range options {
		option(client)
	}

	if len(client.middlewares) > 0 {
		transport := client.httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		// reverse order so the first middleware is outermost
		for i := len(client.middlewares) - 1; i >= 0; i-- {
			transport = client.middlewares[i](transport)
		}
		client.httpClient.Transport = transport
	}

	return client
}

// WithBaseURL sets the base URL for all requests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTimeout sets the timeout for all requests
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithBearerToken authenticates every request. An empty token sends no header.
func WithBearerToken(token string) ClientOption {
	return func(c *HTTPClient) {
		if token != "" {
			c.defaultHeaders["Authorization"] = "Bearer " + token
		}
	}
}

// WithDefaultHeader adds a default header to all requests
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *HTTPClient) {
		c.defaultHeaders[key] = value
	}
}

// WithRetryConfig sets the retry configuration
func WithRetryConfig(config *RetryConfig) ClientOption {
	return func(c *HTTPClient) {
		c.retryConfig = config
	}
}

// WithMiddleware adds a middleware to the client
func WithMiddleware(middleware Middleware) ClientOption {
	return func(c *HTTPClient) {
		c.middlewares = append(c.middlewares, middleware)
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(collector MetricsCollector) ClientOption {
	return func(c *HTTPClient) {
		if collector != nil {
			c.metrics = collector
		}
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Transport = transport
	}
}

// WithQueryParam adds a query parameter. Repeated keys are kept in order.
func WithQueryParam(key, value string) RequestOption {
	return func(req *http.Request) {
		q := req.URL.Query()
		q.Add(key, value)
		req.URL.RawQuery = q.Encode()
	}
}

// WithHeader sets a header on the request
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Get performs an HTTP GET request and returns the response body
func (c *HTTPClient) Get(ctx context.Context, path string, options ...RequestOption) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil, options...)
}

// Post performs an HTTP POST request with a JSON body and returns the response body
func (c *HTTPClient) Post(ctx context.Context, path string, body any, options ...RequestOption) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, body, options...)
}

// Do performs a request and returns the raw response body of a 2xx response.
// Non-2xx responses return an *HTTPError; transport failures are wrapped.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any, options ...RequestOption) ([]byte, error) {
	start := time.Now()
	fullURL := c.buildURL(path)

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = encoded
	}

	var (
		statusCode int
		respBody   []byte
	)

	attempt := func() error {
		statusCode, respBody = 0, nil

		req, err := c.newRequest(ctx, method, fullURL, payload, options)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		statusCode = resp.StatusCode

		if statusCode < 200 || statusCode >= 300 {
			httpErr := &HTTPError{
				StatusCode: statusCode,
				Status:     resp.Status,
				URL:        req.URL.String(),
				Method:     method,
				Body:       string(respBody),
			}
			if c.isRetryable(statusCode) {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		return nil
	}

	var err error
	if c.retryConfig != nil && c.retryConfig.MaxRetries > 0 {
		expBackoff := backoff.NewExponentialBackOff()
		expBackoff.InitialInterval = c.retryConfig.InitialInterval
		expBackoff.MaxInterval = c.retryConfig.MaxInterval
		expBackoff.Multiplier = c.retryConfig.Multiplier
		expBackoff.MaxElapsedTime = c.retryConfig.MaxElapsedTime

		policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.retryConfig.MaxRetries)), ctx)
		err = backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
			logger.Debug("Retrying HTTP request",
				zap.String("method", method),
				zap.String("url", fullURL),
				zap.Duration("wait", wait),
				zap.Error(err))
		})
	} else {
		err = attempt()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}

	duration := time.Since(start)
	c.metrics.RecordRequestDuration(method, path, statusCode, duration)
	c.metrics.RecordRequestCount(method, path, statusCode)

	if err != nil {
		c.metrics.RecordRequestError(method, path)

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			logger.Warn("HTTP error response",
				zap.String("method", method),
				zap.String("url", fullURL),
				zap.Int("status", httpErr.StatusCode),
				zap.String("body", httpErr.Body),
				zap.Duration("duration", duration))
			return nil, httpErr
		}

		logger.Error("HTTP request failed",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Error(err),
			zap.Duration("duration", duration))
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	logger.Debug("HTTP request successful",
		zap.String("method", method),
		zap.String("url", fullURL),
		zap.Int("status", statusCode),
		zap.Duration("duration", duration))

	return respBody, nil
}

// GetBaseURL returns the configured base URL
func (c *HTTPClient) GetBaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) buildURL(path string) string {
	if c.baseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *HTTPClient) newRequest(ctx context.Context, method, fullURL string, payload []byte, options []RequestOption) (*http.Request, error) {
	if _, err := url.ParseRequestURI(fullURL); err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", fullURL, err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}
	for _, option := range options {
		option(req)
	}

	return req, nil
}

func (c *HTTPClient) isRetryable(statusCode int) bool {
	if c.retryConfig == nil {
		return false
	}
	for _, code := range c.retryConfig.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// DecodeJSON unmarshals a response body holding exactly one JSON value,
// keeping numbers as json.Number
func DecodeJSON(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("failed to decode response: unexpected data after JSON value")
	}
	return nil
}

// NoopMetricsCollector is a metrics collector that does nothing
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordRequestDuration(method, path string, statusCode int, duration time.Duration) {
}
func (n *NoopMetricsCollector) RecordRequestCount(method, path string, statusCode int) {}
func (n *NoopMetricsCollector) RecordRequestError(method, path string)                 {}

// LoggingMiddleware logs every round trip at debug level
func LoggingMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &loggingRoundTripper{next: next}
	}
}

type loggingRoundTripper struct {
	next http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger.Debug("HTTP request started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()))

	resp, err := l.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	logger.Debug("HTTP response received",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return resp, nil
}
