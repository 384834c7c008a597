// Package remote fetches batch input served over HTTP(S).
package remote

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	maxRetries     = 3
	defaultBackoff = time.Second
	errBodyLimit   = 512
)

// APIError is a non-2xx answer from the input server.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Document is an opened remote input. Body streams the content and must be
// closed by the caller.
type Document struct {
	Body        io.ReadCloser
	URL         string
	ContentType string
}

// Format guesses the source format: a JSON Lines media type wins, then the
// URL path extension, then text/plain. It returns "" when nothing matches.
// Many servers label any text as text/plain, so that comes last.
func (d *Document) Format() string {
	mt, _, _ := mime.ParseMediaType(d.ContentType)
	switch mt {
	case "application/x-ndjson", "application/jsonl", "application/x-jsonlines":
		return "jsonl"
	}
	if u, err := url.Parse(d.URL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".jsonl", ".ndjson":
			return "jsonl"
		case ".txt":
			return "lines"
		}
	}
	if mt == "text/plain" {
		return "lines"
	}
	return ""
}

// Client fetches documents with optional Bearer auth, retrying throttled
// and failed requests.
type Client struct {
	hc      *http.Client
	token   string
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBackoff sets the first retry delay; later retries double it.
// Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a Client. The default HTTP client has no overall timeout
// because bodies are streamed; bound requests with the context.
func New(opts ...Option) *Client {
	c := &Client{hc: &http.Client{}, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Open GETs rawURL. Non-2xx answers become *APIError; 429 (honoring
// Retry-After) and 5xx are retried up to 3 times with exponential backoff.
// Waits end early when ctx is done.
func (c *Client) Open(ctx context.Context, rawURL string) (*Document, error) {
	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.delay(attempt, lastErr)); err != nil {
				return nil, err
			}
		}

		doc, apiErr, err := c.get(ctx, rawURL)
		switch {
		case err != nil:
			return nil, err
		case apiErr == nil:
			return doc, nil
		case !apiErr.retryable():
			return nil, apiErr
		}
		lastErr = apiErr
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, rawURL string) (*Document, *APIError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("remote: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("remote: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Document{
			Body:        resp.Body,
			URL:         rawURL,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		retryAfter: resp.Header.Get("Retry-After"),
	}, nil
}

// delay returns the wait before retry number attempt (1-based).
func (c *Client) delay(attempt int, last *APIError) time.Duration {
	if last != nil && last.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(last.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.backoff << (attempt - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
