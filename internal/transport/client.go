// Package transport provides an authenticated HTTP client with bounded
// exponential backoff for transient failures. Timeouts, network errors, and
// 5xx/429 responses are retried; other client errors surface immediately.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/agentstation/gatesync/pkg/constants"
	gserrors "github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/logging"
)

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// BearerAuth authenticates with an Authorization: Bearer header.
type BearerAuth struct {
	Token string
}

// Apply implements Authenticator.
func (a *BearerAuth) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// HeaderAuth authenticates with an arbitrary header, for upstreams that use
// x-api-key style credentials.
type HeaderAuth struct {
	Header string
	Value  string
}

// Apply implements Authenticator.
func (a *HeaderAuth) Apply(req *http.Request) {
	if a.Value != "" {
		req.Header.Set(a.Header, a.Value)
	}
}

// NoAuth sends requests without credentials.
type NoAuth struct{}

// Apply implements Authenticator.
func (a *NoAuth) Apply(*http.Request) {}

// Client is an HTTP client with authentication and retry applied to every
// request.
type Client struct {
	http       *http.Client
	auth       Authenticator
	provider   string
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetries overrides the retry budget for transient failures.
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a transport client. The provider name is carried into errors
// for attribution.
func New(provider string, auth Authenticator, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:       auth,
		provider:   provider,
		maxRetries: constants.MaxRetries,
		backoff:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, url string, out any) error {
	return c.Do(ctx, http.MethodGet, url, nil, out)
}

// Post performs a POST request with a JSON body and decodes the response.
func (c *Client) Post(ctx context.Context, url string, body, out any) error {
	return c.Do(ctx, http.MethodPost, url, body, out)
}

// Put performs a PUT request with a JSON body and decodes the response.
func (c *Client) Put(ctx context.Context, url string, body, out any) error {
	return c.Do(ctx, http.MethodPut, url, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) error {
	return c.Do(ctx, http.MethodDelete, url, nil, nil)
}

// Do performs a request with authentication and retry. body (when non-nil)
// is JSON-encoded; the response body is decoded into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return gserrors.WrapParse("json", "request body", err)
		}
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
			logging.Ctx(ctx).Debug().
				Str("provider", c.provider).
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff *= 2; backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		err := c.once(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return gserrors.WrapIO("create request", url, err)
	}

	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &gserrors.APIError{
			Provider: c.provider,
			Endpoint: url,
			Message:  "request failed",
			Err:      err,
		}
	}
	return DecodeResponse(c.provider, resp, out)
}

// DecodeResponse reads a response body and decodes it into target. Non-2xx
// statuses become an *errors.APIError carrying the body as message.
func DecodeResponse(provider string, resp *http.Response, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gserrors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &gserrors.APIError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return gserrors.WrapParse("json", "response", err)
	}
	return nil
}

// retriable reports whether an error is a transient transport condition.
func retriable(err error) bool {
	var apiErr *gserrors.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode != 0 {
			return apiErr.Retriable()
		}
		err = apiErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
