// Package apollo provides a client for the Apollo people search and bulk
// match APIs.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.apollo.io/api/v1"
	defaultTimeout = 30 * time.Second

	// DefaultPerPage is the page size requested from people search.
	DefaultPerPage = 25

	searchPath    = "/mixed_people/search"
	bulkMatchPath = "/people/bulk_match"
)

// Client performs people search and bulk enrichment against Apollo.
type Client interface {
	// Search runs a mixed people search and returns the raw response.
	Search(ctx context.Context, req SearchRequest) (*RawResponse, error)
	// BulkMatch enriches up to ten people in one call and returns the raw response.
	BulkMatch(ctx context.Context, req BulkMatchRequest) (*RawResponse, error)
}

// SearchRequest is the request body for POST /mixed_people/search.
type SearchRequest struct {
	PerPage               int      `json:"per_page"`
	PersonTitles          []string `json:"person_titles"`
	PersonLocations       []string `json:"person_locations"`
	Industries            []string `json:"industries,omitempty"`
	QOrganizationKeywords []string `json:"q_organization_keywords,omitempty"`
}

// BulkMatchRequest is the request body for POST /people/bulk_match.
type BulkMatchRequest struct {
	Details              []Detail `json:"details"`
	RevealPersonalEmails bool     `json:"reveal_personal_emails"`
	RevealWorkEmails     bool     `json:"reveal_work_emails"`
}

// Detail identifies one person to match. Empty fields are omitted because
// the API treats a present-but-empty key differently from a missing one.
type Detail struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// RawResponse is a successful API response kept in both raw and decoded form.
type RawResponse struct {
	StatusCode int
	Body       json.RawMessage
	Value      any
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Endpoint   string
	StatusCode int
	// Body is the decoded response body, or a parse-failure marker when the
	// body is not JSON.
	Body any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apollo: %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Message())
}

// Message extracts a human-readable message from the error body.
func (e *APIError) Message() string {
	if m, ok := e.Body.(map[string]any); ok {
		for _, k := range []string{"message", "error"} {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "upstream request failed"
}

// ParseFailure builds the marker substituted for a body that is not JSON.
func ParseFailure(raw []byte) map[string]any {
	return map[string]any{
		"parse_error": "response body is not valid JSON",
		"raw":         string(raw),
	}
}

// DecodeBody decodes raw as JSON, falling back to a parse-failure marker.
func DecodeBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ParseFailure(raw)
	}
	return v
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*RawResponse, error) {
	if req.PerPage == 0 {
		req.PerPage = DefaultPerPage
	}
	return c.post(ctx, searchPath, req)
}

func (c *httpClient) BulkMatch(ctx context.Context, req BulkMatchRequest) (*RawResponse, error) {
	if req.Details == nil {
		req.Details = []Detail{}
	}
	return c.post(ctx, bulkMatchPath, req)
}

func (c *httpClient) post(ctx context.Context, path string, payload any) (*RawResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       DecodeBody(respBody),
		}
	}

	var value any
	if err := json.Unmarshal(respBody, &value); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal response")
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(respBody),
		Value:      value,
	}, nil
}
