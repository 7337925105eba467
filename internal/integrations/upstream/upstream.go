// Package upstream holds the outbound HTTP plumbing shared by the provider
// clients: one JSON POST per call and non-2xx capture into StatusError.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	maxErrorBody   = 4096
	maxSuccessBody = 1 << 20
)

// StatusError captures a non-2xx provider response.
type StatusError struct {
	StatusCode int
	StatusText string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UpstreamMessage returns the provider's own error message, falling back to
// the HTTP status text when the body carries none.
func (e *StatusError) UpstreamMessage() string {
	if msg := errorBodyMessage(e.Body); msg != "" {
		return msg
	}
	if e.StatusText != "" {
		return e.StatusText
	}
	return http.StatusText(e.StatusCode)
}

// PostJSON marshals payload, POSTs it to endpoint and returns the raw 2xx body.
// Non-2xx responses are returned as *StatusError.
func PostJSON(ctx context.Context, client *http.Client, endpoint string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = RedactURL(urlErr.URL)
		}
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			StatusText: statusText(res.Status, res.StatusCode),
			URL:        RedactURL(endpoint),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxSuccessBody))
	if err != nil {
		return nil, fmt.Errorf("upstream: read response body: %w", err)
	}
	return buf, nil
}

// RedactURL drops the query string, which may carry an API key.
func RedactURL(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// statusText strips the numeric prefix from an http.Response.Status line.
func statusText(status string, code int) string {
	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if text == "" {
		return http.StatusText(code)
	}
	return text
}

// errorBodyMessage extracts a message from the common provider error shapes:
// {"error":{"message":"..."}}, {"error":"..."} and {"message":"..."}.
// Anything unparseable is treated as an empty object.
func errorBodyMessage(body string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		payload = map[string]any{}
	}
	switch v := payload["error"].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	if msg, ok := payload["message"].(string); ok {
		return strings.TrimSpace(msg)
	}
	return ""
}
