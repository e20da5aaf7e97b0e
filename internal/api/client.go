// Package api provides a client for the Opsdesk dashboard HTTP API.
package api

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

	"github.com/rs/zerolog"

	"github.com/opsdeskhq/opsdesk/internal/logging"
)

// Sentinel errors mapped from API status codes. Callers branch on these with
// errors.Is; the wrapped *APIError keeps the server's detail text.
var (
	// ErrNotFound means the resource is gone server-side. For a conversation
	// being polled this is terminal: stop polling, don't retry.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the session token was rejected. The client's
	// unauthorized hook has already fired by the time this is returned.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the dashboard API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps well-known status codes onto sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// Client is an Opsdesk dashboard API client. It is safe for concurrent use
// once constructed; SetToken and SetUnauthorizedHook are wiring calls made
// before requests start.
type Client struct {
	baseURL string

	// httpClient serves one-shot requests with a deadline.
	httpClient *http.Client

	// pollClient serves polling requests without a deadline. A slow server
	// should surface as a late refresh, not a timeout error.
	pollClient *http.Client

	token          string
	onUnauthorized func()
	log            zerolog.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		pollClient: &http.Client{},
		log:        logging.Component("api"),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token sent on every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the bearer token currently in use.
func (c *Client) Token() string {
	return c.token
}

// SetUnauthorizedHook registers fn to run whenever the API rejects the
// token. Used to clear the persisted session so the next run prompts for
// login again.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.onUnauthorized = fn
}

// requestOpts tunes how a single request is executed.
type requestOpts struct {
	// poll marks a background refresh: no client timeout.
	poll bool
	// header carries extra request headers, e.g. an idempotency key.
	header http.Header
}

// doRequest performs an HTTP request and decodes the JSON response into out
// (when out is non-nil).
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any, out any, opts requestOpts) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range opts.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := c.httpClient
	if opts.poll {
		client = c.pollClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.handleError(method, path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// handleError builds an *APIError from an error response and fires the
// unauthorized hook when the token was rejected.
func (c *Client) handleError(method, path string, status int, body []byte) error {
	var errResp struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &errResp)

	apiErr := &APIError{StatusCode: status, Detail: errResp.Detail}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Msg("api request failed")

	if status == http.StatusUnauthorized {
		// A rejected token is dead; keep background polls from presenting
		// it again and again.
		c.token = ""
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return apiErr
}
