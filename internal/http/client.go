package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "factorio-mod-downloader"
)

// Client wraps HTTP operations with catalog-specific configuration.
//
// Client provides:
//   - Configured User-Agent header
//   - Timeout handling for pages and response headers
//   - Request throttling shared by every caller of the client
//   - Ranged GET streaming and range-support checks
//
// A Client is safe for concurrent use.
//
// Example usage:
//
//	client := NewClient(WithUserAgent("Mozilla/5.0"))
//
//	// Fetch HTML content
//	html, err := client.GetString(ctx, "https://mods.factorio.com/mod/flib")
//
//	// Artifact size via HEAD
//	size, err := client.GetFileSize(ctx, zipURL)
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds page requests and the wait for response headers.
// Artifact bodies are not bounded so large files can stream.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit allows rps requests per second with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new HTTP client.
//
// Without options the client uses a 30 second timeout, no rate limit
// and a "factorio-mod-downloader" User-Agent header.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.timeout
		c.httpClient = &http.Client{Transport: transport}
	}
	return c
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Status, e.URL)
}

// Temporary reports whether a later attempt may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

func statusError(resp *http.Response, url string) error {
	err := &StatusError{URL: url, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	switch {
	case err.Temporary():
		return failure.Wrap(failure.Network, err, "", "The server is busy or unavailable. Try again later.")
	case resp.StatusCode == http.StatusNotFound:
		return failure.Wrap(failure.Validation, err, "", "Check that the mod exists on the mod portal")
	default:
		return failure.Wrap(failure.Validation, err, "", "The server rejected the request. Check the mod URL.")
	}
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	return c.httpClient.Do(req)
}

// Get performs a GET request and returns the response body as bytes.
//
// The whole request, body included, is bounded by the client timeout.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 200 OK
//   - Reading the body fails
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, url)
	}

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a string.
//
// This is a convenience wrapper around Get for fetching HTML pages.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Head performs a HEAD request and returns the response headers.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, url)
	}
	return resp.Header, nil
}

// GetFileSize returns the size of a file at the given URL via HEAD request.
//
// Returns an error if the request fails or the server doesn't return a
// Content-Length header.
func (c *Client) GetFileSize(ctx context.Context, url string) (int64, error) {
	header, err := c.Head(ctx, url)
	if err != nil {
		return 0, err
	}

	size, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("no Content-Length header for %s", url)
	}
	return size, nil
}

// RangeStatus requests the first byte of url and returns the status code.
// A server that supports byte ranges answers 206.
func (c *Client) RangeStatus(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url, http.Header{"Range": {"bytes=0-0"}})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	return resp.StatusCode, nil
}

// Stream is an open artifact body.
type Stream struct {
	// Body must be closed by the caller.
	Body io.ReadCloser

	// Start is the byte offset Body begins at. It is 0 when the server
	// ignored the requested range.
	Start int64

	// Total is the full artifact size, or 0 when unknown.
	Total int64
}

// Stream performs a GET request starting at offset and returns the open body.
//
// For offset > 0 a Range header is sent. A 206 answer yields Start = offset
// and the total from Content-Range; a 200 answer means the server sent the
// whole artifact and Start is 0.
func (c *Client) Stream(ctx context.Context, url string, offset int64) (*Stream, error) {
	var header http.Header
	if offset > 0 {
		header = http.Header{"Range": {fmt.Sprintf("bytes=%d-", offset)}}
	}

	resp, err := c.do(ctx, http.MethodGet, url, header)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		return &Stream{Body: resp.Body, Start: 0, Total: total}, nil
	case http.StatusPartialContent:
		start, total := parseContentRange(resp.Header.Get("Content-Range"))
		if start < 0 {
			start = offset
		}
		if total <= 0 && resp.ContentLength >= 0 {
			total = start + resp.ContentLength
		}
		return &Stream{Body: resp.Body, Start: start, Total: total}, nil
	default:
		resp.Body.Close()
		return nil, statusError(resp, url)
	}
}

// parseContentRange parses "bytes <start>-<end>/<total>". Unknown parts are
// returned as -1 for start and 0 for total.
func parseContentRange(value string) (start, total int64) {
	start, total = -1, 0

	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return start, total
	}
	span, size, ok := strings.Cut(strings.TrimPrefix(value, "bytes "), "/")
	if !ok {
		return start, total
	}
	if first, _, ok := strings.Cut(span, "-"); ok {
		if n, err := strconv.ParseInt(first, 10, 64); err == nil {
			start = n
		}
	}
	if n, err := strconv.ParseInt(size, 10, 64); err == nil {
		total = n
	}
	return start, total
}
