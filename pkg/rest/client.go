// Package rest is the JSON-over-HTTP client shared by the DEX adapters and
// the wallet service client.
package rest

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

	"github.com/jpillora/backoff"
	"github.com/raykavin/tonpairs/pkg/logger"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Client is a JSON HTTP client bound to a base URL, retrying failed requests
// with backoff
type Client struct {
	baseURL  string
	http     *http.Client
	headers  http.Header
	attempts int
	backoff  func() *backoff.Backoff
	log      logger.Logger
}

// Option is a function that configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithAttempts sets how many times a temporary failure is tried
func WithAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithBackoff sets the delay bounds between attempts
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.backoff = func() *backoff.Backoff {
			return &backoff.Backoff{Min: min, Max: max, Factor: 2, Jitter: true}
		}
	}
}

// WithLogger sets the logger used to report retries
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client for the given base URL
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		headers:  make(http.Header),
		attempts: 3,
		backoff:  defaultBackoff,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// defaultBackoff creates a backoff with sensible defaults
func defaultBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

// Do sends a JSON request and decodes the JSON response into out when out is
// not nil. Temporary failures are retried with backoff.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	retry := c.backoff()
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = c.do(ctx, method, endpoint, payload, out)
		if lastErr == nil || !temporary(lastErr) || attempt == c.attempts {
			break
		}

		wait := retry.Duration()
		if c.log != nil {
			c.log.WithError(lastErr).Warnf("request to %s failed, retrying in %s", endpoint, wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	for key, values := range c.headers {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(content))}
	}

	if out == nil || len(content) == 0 {
		return nil
	}

	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func temporary(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	// transport errors
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
