// Package gitlab is a thin client for the GitLab users API.
// Send is the only place that performs network I/O; everything else in the
// package builds requests and interprets responses.
package gitlab

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

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TokenHeader carries the private token on every request.
const TokenHeader = "PRIVATE-TOKEN"

// Observer receives one callback per completed HTTP exchange.
// status is 0 when the request never got a response.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// RateLimitRPS throttles outgoing requests. Zero disables the limiter.
	RateLimitRPS float64
	// StrictLookups turns non-200 lookups into errors instead of "not found".
	StrictLookups bool
	Observer      Observer
	HTTPClient    *http.Client
}

// Response is the status and raw body of a single exchange.
type Response struct {
	Status     string
	StatusCode int
	Body       []byte
}

// OK reports a 200 response.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Success reports any 2xx response.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client talks to a GitLab API root such as https://gitlab.example.com/api/v4.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	limiter       *rate.Limiter
	observer      Observer
	strictLookups bool
}

// NewClient creates a new API client.
func NewClient(baseURL, token string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		httpClient:    httpClient,
		limiter:       limiter,
		observer:      opts.Observer,
		strictLookups: opts.StrictLookups,
	}
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// Send performs one request against the API. payload is JSON-encoded when
// non-nil. Only connection-level failures are returned as errors; any HTTP
// status, including 4xx and 5xx, comes back as a Response.
func (c *Client) Send(ctx context.Context, method, path string, payload any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RemoteError{Method: method, Path: path, Reason: err.Error()}
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, &RemoteError{Method: method, Path: path, Reason: err.Error()}
	}
	req.Header.Set(TokenHeader, c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, start)
		return nil, transportError(method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, path, resp.StatusCode, start)
	if err != nil {
		return nil, &RemoteError{Method: method, Path: path, Reason: err.Error(), Status: resp.Status}
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("API request completed")

	return &Response{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(method, Route(path), status, time.Since(start))
}

// lookup issues a GET and reports whether the body should be parsed.
// A non-200 status means "not found" unless strict lookups are enabled.
func (c *Client) lookup(ctx context.Context, path string) (*Response, bool, error) {
	resp, err := c.Send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, false, err
	}
	if resp.OK() {
		return resp, true, nil
	}
	if c.strictLookups {
		return nil, false, lookupError(path, resp)
	}
	log.Warn().
		Str("path", path).
		Str("status", resp.Status).
		Msg("Lookup failed, treating as not found")
	return resp, false, nil
}

// decodeInto parses a JSON body keeping numbers as json.Number.
func decodeInto(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

func transportError(method, path string, err error) error {
	reason := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		reason = urlErr.Err.Error()
	}
	return &RemoteError{Method: method, Path: path, Reason: reason}
}

// Route collapses numeric path segments so metric labels stay bounded.
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
