// Package manifold is the REST client for the prediction market platform's
// public API.
package manifold

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

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// Client talks to the platform API. Resolutions require an API key;
// read-only calls work without one.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the environment-derived API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given environment.
func NewClient(env domain.Environment, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL(env),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve submits a resolution for a contract. The reply is returned
// undecoded. Non-2xx replies are returned as *APIError, or *UpstreamError
// for a gateway failure.
func (c *Client) Resolve(ctx context.Context, req domain.ResolutionRequest) (json.RawMessage, error) {
	path := fmt.Sprintf("/market/%s/resolve", url.PathEscape(req.ContractID))
	body, err := c.doPost(ctx, path, req)
	if err != nil {
		return nil, fmt.Errorf("manifold: resolve %s: %w", req.ContractID, err)
	}
	return json.RawMessage(body), nil
}

// GetContract returns a contract with its answers.
func (c *Client) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	body, err := c.doGet(ctx, fmt.Sprintf("/market/%s", url.PathEscape(id)))
	if err != nil {
		return domain.Contract{}, fmt.Errorf("manifold: get contract %s: %w", id, err)
	}
	var doc domain.ContractDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Contract{}, fmt.Errorf("manifold: decode contract: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetUser returns a public user profile.
func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	body, err := c.doGet(ctx, fmt.Sprintf("/user/by-id/%s", url.PathEscape(id)))
	if err != nil {
		return domain.User{}, fmt.Errorf("manifold: get user %s: %w", id, err)
	}
	var u APIUser
	if err := json.Unmarshal(body, &u); err != nil {
		return domain.User{}, fmt.Errorf("manifold: decode user: %w", err)
	}
	return u.ToDomain(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus turns a non-2xx reply into an *APIError carrying the
// server's message and a sentinel for the status class. A 5xx reply without
// an API message body came from infrastructure in front of the API and is
// returned as *UpstreamError instead.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	apiErr := &APIError{Code: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		if statusCode >= http.StatusInternalServerError {
			return &UpstreamError{Code: statusCode, Body: truncate(strings.TrimSpace(string(body)), maxUpstreamBody)}
		}
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(statusCode)
		}
	}

	switch statusCode {
	case http.StatusNotFound:
		apiErr.sentinel = domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.sentinel = domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		apiErr.sentinel = domain.ErrRateLimited
	}
	return apiErr
}

// maxUpstreamBody caps how much of a proxy error page ends up in logs.
const maxUpstreamBody = 256

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
