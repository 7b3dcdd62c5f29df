package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/google/uuid"

	"portico/pkg/logging"
)

// TenantHeader names the header carrying the active tenant on every
// gateway call.
const TenantHeader = "X-Okapi-Tenant"

// BuildHeaders constructs the header set for a gateway request. The tenant
// and content-type headers are always present; the authorization header is
// included only when a token is supplied, since cookie-based auth is the
// default path.
func BuildHeaders(tenant, token string) http.Header {
	headers := http.Header{}
	headers.Set(TenantHeader, tenant)
	headers.Set("Content-Type", "application/json")
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return headers
}

// Client issues credentialed requests against the platform gateway. It
// holds a cookie jar because the token endpoint establishes the session
// through response cookies.
//
// The client sets no timeout of its own; deadlines are the caller's
// concern via context.
type Client struct {
	httpClient *http.Client
}

// ClientOption configures the gateway client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The caller is responsible for
// attaching a cookie jar if cookie-based auth is expected to work.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a gateway client with a fresh cookie jar.
func NewClient(opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{Jar: jar},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetJSON issues an authenticated GET and decodes the response into out.
// Any non-2xx response is returned as a *FetchError.
func (c *Client) GetJSON(ctx context.Context, url, tenant, token string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, tenant, token, nil, out)
}

// PostJSON issues an authenticated POST with an optional JSON body and
// decodes the response into out. A nil body sends an empty request body; a
// nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url, tenant, token string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, url, tenant, token, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, url, tenant, token string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = BuildHeaders(tenant, token)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Debug("Gateway", "%s %s failed: status=%d requestId=%s body=%s", method, url, resp.StatusCode, requestID, string(respBody))
		return &FetchError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(respBody),
			URL:        url,
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}
