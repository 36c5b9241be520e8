// Package supabase is a minimal client for the hosted identity/database service: the GoTrue auth API
// (/auth/v1) and the PostgREST row API (/rest/v1). A Client is safe for concurrent use.
package supabase

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
)

const defaultTimeout = 15 * time.Second

// Client sends authenticated requests to one hosted project using the service credential.
type Client struct {
	BaseURL    *url.URL
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client for the project at baseURL (e.g. https://xyz.supabase.co) using the given key.
// timeout <= 0 selects a 15s default.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("supabase: API key not configured")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: invalid base URL %q: %w", baseURL, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("supabase: invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    u,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

// endpoint joins path onto the project URL and attaches query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.BaseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// request describes one call to the hosted service.
type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do sends req and decodes a 2xx JSON body into out (if non-nil). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("apikey", c.APIKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("supabase: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("supabase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

// PingContext checks that the auth API answers its health endpoint.
func (c *Client) PingContext(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/health"}, nil)
}
