// Package phclient implements a minimal client for the Product Hunt v2
// GraphQL API. Tool runners use it to execute queries; the server's upstream
// probe uses it to verify credential validity.
package phclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the Product Hunt v2 GraphQL endpoint.
const DefaultEndpoint = "https://api.producthunt.com/v2/api/graphql"

// TokenEnv is the environment variable holding the API access token.
const TokenEnv = "PRODUCT_HUNT_TOKEN"

const defaultTimeout = 30 * time.Second

var (
	// ErrUnauthorized indicates the access token was rejected upstream.
	ErrUnauthorized = errors.New("phclient: unauthorized")

	// ErrRateLimited indicates the upstream API throttled the request.
	ErrRateLimited = errors.New("phclient: rate limited")
)

// Doer executes a GraphQL query and returns the raw "data" payload.
// It is the seam tool runners depend on, so tests can substitute a stub.
type Doer interface {
	Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// Config configures a Client.
type Config struct {
	// Endpoint overrides the GraphQL endpoint (default DefaultEndpoint).
	Endpoint string

	// Token is the bearer token sent with every request.
	Token string

	// Timeout bounds each request (default 30s). Ignored when HTTPClient
	// is provided.
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client
}

// Client talks to the Product Hunt GraphQL API.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// New creates a Client from the given configuration.
func New(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Token),
		client:   httpClient,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// Do executes a GraphQL query and returns the raw data payload.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("phclient: client is nil")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("phclient: empty query")
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("phclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("phclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("phclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("phclient: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, resp.Header.Get("Retry-After"))
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		message := strings.TrimSpace(string(respBody))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("phclient: status %d: %s", resp.StatusCode, message)
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("phclient: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, ge := range parsed.Errors {
			messages = append(messages, ge.Message)
		}
		return nil, fmt.Errorf("phclient: graphql errors: %s", strings.Join(messages, "; "))
	}
	return parsed.Data, nil
}

// Compile-time interface check.
var _ Doer = (*Client)(nil)
