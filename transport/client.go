package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy allows two retries after the first attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Request describes one provider call. Body is buffered so attempts
// can be replayed.
type Request struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	ContentType string

	// Auth is applied freshly on every attempt.
	Auth auth.Strategy

	// Impersonate routes the call through the browser TLS profile.
	// On a handshake or connection failure the call falls back to the
	// plain client once.
	Impersonate bool
}

// Response is a fully buffered provider response. Status handling is
// the caller's job; the client only retries the transient statuses.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client wraps two http.Clients, one hardened for API endpoints and
// one with the browser TLS profile, behind a shared retry loop.
type Client struct {
	api     *http.Client
	browser *http.Client
	retry   RetryPolicy
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option adjusts a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithHTTPClients swaps the underlying clients, used by tests.
func WithHTTPClients(api, browser *http.Client) Option {
	return func(c *Client) {
		c.api = api
		c.browser = browser
	}
}

// NewClient builds a client whose requests time out after the given
// duration. The timeout covers a single attempt, not the retry loop.
func NewClient(timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		api:     &http.Client{Timeout: timeout, Transport: secureTransport()},
		browser: &http.Client{Timeout: timeout, Transport: browserTransport()},
		retry:   DefaultRetryPolicy(),
		logger:  logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatus lists the statuses worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do performs the request with retries and returns the buffered
// response. A non-2xx status is not an error here; only exhausted
// retries and context cancellation are.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, body, err := c.attempt(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream performs the request and hands back the response body as an
// incremental line stream. Retries only cover attempts that fail
// before a 2xx status arrives; once streaming starts the caller owns
// the connection. A non-2xx response is consumed and classified.
func (c *Client) Stream(ctx context.Context, req *Request) (*LineStream, error) {
	resp, body, err := c.attempt(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if auth.DetectChallenge(body) {
			return nil, types.NewError(types.ErrAuthChallenge, "endpoint served an anti-bot challenge page").
				WithHTTPStatus(resp.StatusCode)
		}
		return nil, types.NewError(types.ErrProviderRejected,
			fmt.Sprintf("stream request returned HTTP %d: %s", resp.StatusCode, snippet(body))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(retryableStatus(resp.StatusCode))
	}
	return NewLineStream(resp.Body), nil
}

// attempt runs the retry loop. For streaming the successful response
// body is left open and the returned body slice is nil; for buffered
// calls the body is fully read and closed on retryable statuses only.
func (c *Client) attempt(ctx context.Context, req *Request, streaming bool) (*http.Response, []byte, error) {
	client := c.api
	if req.Impersonate {
		client = c.browser
	}
	fellBack := false

	var lastErr error
	backoff := c.retry.InitialBackoff

	for i := 0; i <= c.retry.MaxRetries; i++ {
		hreq, err := c.build(ctx, req)
		if err != nil {
			return nil, nil, err
		}

		resp, err := client.Do(hreq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, types.NewError(types.ErrTimeout, "request cancelled").WithCause(ctx.Err())
			}
			if req.Impersonate && !fellBack {
				// The browser TLS profile was refused; one shot with
				// the plain client before counting retries.
				c.logger.Warn("impersonated request failed, falling back to plain client",
					zap.String("url", req.URL), zap.Error(err))
				client = c.api
				fellBack = true
				i--
				continue
			}
			lastErr = types.NewError(types.ErrProviderRejected, "request failed").
				WithCause(err).WithRetryable(true)
		} else if !streaming {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = types.NewError(types.ErrProviderRejected, "read response body").
					WithCause(readErr).WithRetryable(true)
			} else if retryableStatus(resp.StatusCode) && i < c.retry.MaxRetries {
				lastErr = types.NewError(types.ErrProviderRejected,
					fmt.Sprintf("transient HTTP %d: %s", resp.StatusCode, snippet(body))).
					WithHTTPStatus(resp.StatusCode).WithRetryable(true)
			} else {
				return resp, body, nil
			}
		} else {
			if retryableStatus(resp.StatusCode) && i < c.retry.MaxRetries {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
				resp.Body.Close()
				lastErr = types.NewError(types.ErrProviderRejected,
					fmt.Sprintf("transient HTTP %d: %s", resp.StatusCode, snippet(body))).
					WithHTTPStatus(resp.StatusCode).WithRetryable(true)
			} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
				return resp, body, nil
			} else {
				return resp, nil, nil
			}
		}

		if i < c.retry.MaxRetries {
			c.logger.Debug("retrying request",
				zap.String("url", req.URL),
				zap.Int("attempt", i+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, nil, types.NewError(types.ErrTimeout, "request cancelled during backoff").WithCause(err)
			}
			backoff = time.Duration(float64(backoff) * c.retry.Multiplier)
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}
	}
	return nil, nil, lastErr
}

func (c *Client) build(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, types.NewError(types.ErrBadInput, "build request").WithCause(err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			hreq.Header.Add(name, v)
		}
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Auth != nil {
		if err := req.Auth.Apply(hreq); err != nil {
			return nil, err
		}
	}
	return hreq, nil
}

// snippet trims a body for log and error messages.
func snippet(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
