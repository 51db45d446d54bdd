package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient is a small JSON-over-HTTP helper shared by the tool clients.
// It performs exactly one request per call; retrying belongs to the step
// executor, which owns the backoff policy.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds a client with the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// GetJSON issues a GET and decodes a 2xx JSON response into out. Any
// failure is reported as a *Fault with the code the step executor
// classifies for retry.
func (c *HTTPClient) GetJSON(ctx context.Context, toolName, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewFault(toolName, CodeInvalidParameters, "building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return NewFault(toolName, CodeCancelled, "request cancelled: %v", ctx.Err())
		}
		// Timeouts, refused connections, DNS failures.
		return NewFault(toolName, CodeTransientNetwork, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewFault(toolName, CodeTransientNetwork, "decoding response: %v", err)
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return NewFault(toolName, faultCodeForStatus(resp.StatusCode), "%s: %s", resp.Status, string(body))
}

// faultCodeForStatus maps an HTTP status to the tool fault enum.
func faultCodeForStatus(status int) Code {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeUnauthorized
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeTransientNetwork
	default:
		return CodeInvalidParameters
	}
}

// AsFault extracts a *Fault from err, if present.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
