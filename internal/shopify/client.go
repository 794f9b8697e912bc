// Package shopify provides a client for the Shopify Admin GraphQL API
// media endpoints. It supports verifying granted access scopes, listing
// storefront image files page by page, and updating image alt text.
//
// The client requires the store's myshopify domain and an Admin API
// access token, typically loaded from the environment or from SSM
// Parameter Store at Lambda cold start.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// apiVersion pins the versioned Admin API endpoint.
	apiVersion = "2025-07"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// maxAttempts bounds retries for rate-limited requests.
	maxAttempts = 3

	// retryBaseDelay scales linearly with the attempt number.
	retryBaseDelay = time.Second
)

// Error codes surfaced in GraphQL error extensions.
const (
	errCodeThrottled       = "THROTTLED"
	errCodeMaxCostExceeded = "MAX_COST_EXCEEDED"
)

// RequiredScopes are the access scopes the job needs before touching
// storefront media.
var RequiredScopes = []string{"read_files", "write_files"}

// Client provides methods for reading and writing storefront media via
// the Admin GraphQL API.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string

	// retryDelay is retryBaseDelay in production; tests shorten it.
	retryDelay time.Duration
}

// NewClient creates an Admin API client for the given store.
func NewClient(storeDomain, accessToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", storeDomain, apiVersion),
		accessToken: accessToken,
		retryDelay:  retryBaseDelay,
	}
}

// --- Error types ---

// APIError is a non-200 HTTP response from the Admin API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API HTTP %d: %s", e.Status, e.Message)
}

// GraphQLError is an error payload returned alongside a 200 response.
type GraphQLError struct {
	Code    string
	Message string
}

func (e *GraphQLError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("shopify GraphQL error %s: %s", e.Code, e.Message)
	}
	return "shopify GraphQL error: " + e.Message
}

// --- Wire types ---

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLWireError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// --- Transport ---

// post executes one GraphQL request under the retry policy: up to
// maxAttempts attempts, where HTTP 429, network timeouts and throttled
// GraphQL errors wait retryDelay multiplied by the attempt number before
// retrying. Every other failure is returned immediately.
func (c *Client) post(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.postOnce(ctx, payload, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		wait := time.Duration(attempt) * c.retryDelay
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Transient Shopify API error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("shopify API: giving up after %d attempts: %w", maxAttempts, lastErr)
}

// postOnce performs a single GraphQL POST and decodes data into out.
func (c *Client) postOnce(ctx context.Context, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Shopify API response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Shopify API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return &APIError{Status: httpResp.StatusCode, Message: "rate limited"}
	}
	if httpResp.StatusCode != http.StatusOK {
		return &APIError{Status: httpResp.StatusCode, Message: truncate(string(body), 200)}
	}

	var envelope struct {
		Data   json.RawMessage    `json:"data"`
		Errors []graphQLWireError `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if len(envelope.Errors) > 0 {
		return classifyGraphQLErrors(envelope.Errors)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("unexpected response: no data returned (body: %s)", truncate(string(body), 200))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parse data: %w", err)
	}
	return nil
}

// classifyGraphQLErrors maps an error payload to a typed error. Throttling
// is retryable; cost overruns get an actionable message; everything else
// aggregates into one fatal error.
func classifyGraphQLErrors(wireErrs []graphQLWireError) error {
	messages := make([]string, 0, len(wireErrs))
	for _, we := range wireErrs {
		switch {
		case we.Extensions.Code == errCodeThrottled,
			strings.Contains(strings.ToLower(we.Message), "throttled"):
			return &GraphQLError{Code: errCodeThrottled, Message: we.Message}
		case we.Extensions.Code == errCodeMaxCostExceeded:
			return &GraphQLError{
				Code:    errCodeMaxCostExceeded,
				Message: we.Message + " (reduce the page size or query selection)",
			}
		}
		messages = append(messages, we.Message)
	}
	return &GraphQLError{Message: strings.Join(messages, "; ")}
}

// isRetryable reports whether an error from postOnce falls under the
// rate-limit retry policy.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests
	}
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.Code == errCodeThrottled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "throttled")
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
