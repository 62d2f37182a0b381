// Package moltbook is a pass-through client for the Moltbook agent API.
//
// Responses are returned as raw JSON exactly as the upstream sent them; this
// package never decodes payload schemas.
package moltbook

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

// DefaultBaseURL is the public Moltbook API root.
const DefaultBaseURL = "https://www.moltbook.com/api/v1"

const (
	feedSort  = "new"
	feedLimit = 20
)

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
	// Details holds the upstream body when it was valid JSON.
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the Moltbook API with a fixed bearer credential.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout on the default http.Client. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a client bound to apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed returns the newest posts.
func (c *Client) Feed(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("sort", feedSort)
	q.Set("limit", fmt.Sprint(feedLimit))
	return c.do(ctx, http.MethodGet, "/feed?"+q.Encode(), nil)
}

// Post returns a single post with its comments.
func (c *Client) Post(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil)
}

// Me returns the authenticated agent's profile.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/agents/me", nil)
}

// CheckDMs returns the direct-message summary.
func (c *Client) CheckDMs(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/agents/dm/check", nil)
}

// CreatePost publishes body, which must be a JSON document.
func (c *Client) CreatePost(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/posts", body)
}

func (c *Client) do(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("request failed with status code %d", resp.StatusCode),
		}
		if json.Valid(data) {
			apiErr.Details = json.RawMessage(data)
		}
		return nil, apiErr
	}

	return json.RawMessage(data), nil
}
