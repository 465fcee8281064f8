// Package httpjson wraps outbound collaborator calls with bounded timeouts,
// a small number of retries with backoff for transient failures, and
// correlation-id propagation.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
)

const (
	defaultMaxAttempts = 3
	maxBackoff         = 4 * time.Second
)

// StatusError is returned for non-2xx responses. 4xx-class errors are not
// retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Body)
}

// IsTransient reports whether the error is worth retrying: network failures
// and 5xx responses are, validation-class 4xx responses are not.
func IsTransient(err error) bool {
	if statusErr, ok := err.(*StatusError); ok {
		return statusErr.StatusCode >= 500
	}
	// Network-level errors (connection refused, timeout) are transient.
	return err != nil
}

type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxAttempts int
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		maxAttempts: defaultMaxAttempts,
	}
}

// PostJSON posts the payload and decodes the JSON response into out (which
// may be nil when the response body is irrelevant).
func (c *Client) PostJSON(ctx context.Context, url string, payload any, out any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request payload: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, url, body, "application/json", headers)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetBytes fetches the raw response body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, err := c.once(ctx, method, url, body, contentType, headers)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == c.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}

		backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		slog.Warn("Retrying collaborator call", "component", "httpjson",
			"url", url, "attempt", attempt, "delay", backoff.String(), "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, contentType string, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if traceID := obs.TraceID(ctx); traceID != "" {
		req.Header.Set(obs.TraceHeader, traceID)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	return data, nil
}
