// Package adapters holds the concrete provider integrations: KyberSwap for
// same-chain EVM swaps, LI.FI and deBridge DLN for EVM bridging, and NEAR
// Intents 1Click for cross-family routes.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 300 * time.Millisecond
	DefaultMaxDelay    = 3 * time.Second
	DefaultBackoffMult = 2.0
)

// apiClient is the JSON-over-HTTP client shared by the REST adapters.
type apiClient struct {
	baseURL     string
	client      *http.Client
	headers     http.Header
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures an adapter's HTTP client.
type ClientOption func(*apiClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *apiClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *apiClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *apiClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *apiClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *apiClient) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

func newAPIClient(baseURL string, opts ...ClientOption) *apiClient {
	c := &apiClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		headers:     make(http.Header),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpStatusError is a non-2xx response. Only 5xx and 429 are retried.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, body)
}

func (e *httpStatusError) retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// getJSON performs GET baseURL+path?query and decodes the body into result.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, result)
}

// postJSON performs POST baseURL+path with a JSON body.
func (c *apiClient) postJSON(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, result)
}

// do sends the request with retries and exponential backoff.
func (c *apiClient) do(ctx context.Context, method, target string, body []byte, result any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for key, values := range c.headers {
			req.Header[key] = values
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &httpStatusError{Status: resp.StatusCode, Body: string(respBody)}
			if !statusErr.retryable() {
				return statusErr
			}
			lastErr = statusErr
			continue
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
