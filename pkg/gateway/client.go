// Package gateway is the HTTP client for the chat-completion gateway. It
// covers the chat, health and admin endpoints and normalizes every failure
// into either an *APIError (the gateway answered with a non-2xx status) or a
// *TransportError (no response at all).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/portal/pkg/logger"
)

// Endpoint paths.
const (
	PathChat           = "/v1/chat"
	PathChatStream     = "/v1/chat/stream"
	PathHealth         = "/health"
	PathHealthOllama   = "/health/ollama"
	PathAdminBootstrap = "/v1/admin/bootstrap"
	PathAdminRotate    = "/v1/admin/rotate"
	PathAdminStatus    = "/v1/admin/status"
	PathAdminKeys      = "/v1/admin/keys"
)

// DefaultTimeout bounds non-streaming requests. LLM responses can be slow.
// Streams are bounded only by the caller's context.
const DefaultTimeout = 5 * time.Minute

// Doer sends an HTTP request. *http.Client satisfies it, and so does the
// in-process mock gateway.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one gateway base URL.
type Client struct {
	baseURL string
	doer    Doer
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithTimeout sets the deadline applied to each non-streaming request,
// including reading its body. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for baseURL. A trailing slash on baseURL is
// ignored.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		doer:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the normalized gateway base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues a request and returns the raw response regardless of status.
// The caller owns the response body. Bearer is omitted when empty; body is
// JSON-encoded when non-nil.
func (c *Client) Send(ctx context.Context, method, path, bearer string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json, text/event-stream")

	c.logger.Debug("gateway request",
		"method", method,
		"path", path,
		"authenticated", bearer != "",
	)

	resp, err := c.doer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{BaseURL: c.baseURL, Err: err}
	}

	c.logger.Debug("gateway response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)

	return resp, nil
}

// RequestContext derives the context for one non-streaming request. The
// cancel func must be called once the response body has been read.
func (c *Client) RequestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// TimedOut converts an error caused by the RequestContext deadline into a
// *TransportError. Errors from a done parent context pass through.
func (c *Client) TimedOut(parent context.Context, err error) error {
	if err == nil || parent.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransportError{BaseURL: c.baseURL, Err: fmt.Errorf("request timed out after %s: %w", c.timeout, err)}
}

// doJSON sends a request and decodes a 2xx JSON body into out. Non-2xx
// responses become an *APIError.
func (c *Client) doJSON(parent context.Context, method, path, bearer string, body, out any) error {
	ctx, cancel := c.RequestContext(parent)
	defer cancel()

	resp, err := c.Send(ctx, method, path, bearer, body)
	if err != nil {
		return c.TimedOut(parent, err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return &APIError{Status: resp.StatusCode, Detail: ReadError(resp)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.TimedOut(parent, ctxErr)
		}
		return &TransportError{BaseURL: c.baseURL, Err: fmt.Errorf("decoding %s response: %w", path, err)}
	}

	return nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Health probes a liveness endpoint (PathHealth or PathHealthOllama).
func (c *Client) Health(ctx context.Context, path string) (*HealthStatus, error) {
	status := &HealthStatus{}
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

// Bootstrap creates the admin credential if none exists and returns its
// plaintext value.
func (c *Client) Bootstrap(ctx context.Context) (string, error) {
	issued := &IssuedKeyResponse{}
	if err := c.doJSON(ctx, http.MethodPost, PathAdminBootstrap, "", nil, issued); err != nil {
		return "", err
	}
	return issued.APIKey, nil
}

// Rotate replaces the admin credential and returns the new plaintext value.
// adminKey may be empty when the previous credential was cleared locally.
func (c *Client) Rotate(ctx context.Context, adminKey string) (string, error) {
	issued := &IssuedKeyResponse{}
	if err := c.doJSON(ctx, http.MethodPost, PathAdminRotate, adminKey, nil, issued); err != nil {
		return "", err
	}
	return issued.APIKey, nil
}

// AdminStatus reports whether an admin credential has been issued.
func (c *Client) AdminStatus(ctx context.Context, adminKey string) (*AdminStatus, error) {
	status := &AdminStatus{}
	if err := c.doJSON(ctx, http.MethodGet, PathAdminStatus, adminKey, nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

// ListKeys returns the server view of issued API keys.
func (c *Client) ListKeys(ctx context.Context, adminKey string) ([]APIKeyEntry, error) {
	keys := &KeysResponse{}
	if err := c.doJSON(ctx, http.MethodGet, PathAdminKeys, adminKey, nil, keys); err != nil {
		return nil, err
	}
	if keys.Keys == nil {
		return []APIKeyEntry{}, nil
	}
	return keys.Keys, nil
}

// CreateKey issues a new tenant API key.
func (c *Client) CreateKey(ctx context.Context, adminKey, name string) (*CreateKeyResponse, error) {
	created := &CreateKeyResponse{}
	if err := c.doJSON(ctx, http.MethodPost, PathAdminKeys, adminKey, CreateKeyRequest{Name: name}, created); err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteKey revokes an API key by id.
func (c *Client) DeleteKey(ctx context.Context, adminKey, id string) error {
	return c.doJSON(ctx, http.MethodDelete, PathAdminKeys+"/"+url.PathEscape(id), adminKey, nil, nil)
}
