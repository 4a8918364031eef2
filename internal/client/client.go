// Package client provides the request-specification layer the step
// definitions drive: a Client holding run-wide defaults (base URL, default
// headers) and Specs, each describing one not-yet-sent request.
package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is set on every request that does not already carry one so
// that harness logs can be matched with server logs.
const RequestIDHeader = "X-Request-Id"

// DefaultTimeout bounds a single request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // overrides Timeout when set
	Logger     *zerolog.Logger
}

// Client carries the defaults shared by every Spec it creates.
type Client struct {
	mu       sync.RWMutex
	baseURL  string
	defaults map[string]string

	http   *http.Client
	logger zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:  opts.BaseURL,
		defaults: make(map[string]string),
		http:     hc,
		logger:   logger,
	}
}

// SetBaseURL changes the base URL used by every subsequently tossed Spec.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = u
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetDefaultHeaders merges headers into the defaults sent with every request.
// A Spec's own headers take precedence over the defaults.
func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range headers {
		c.defaults[http.CanonicalHeaderKey(k)] = v
	}
}

// DefaultHeaders returns a copy of the default headers.
func (c *Client) DefaultHeaders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.defaults))
	for k, v := range c.defaults {
		out[k] = v
	}
	return out
}

// NewSpec returns an empty Spec bound to c.
func (c *Client) NewSpec() *Spec {
	return &Spec{client: c}
}

// resolveURL joins path onto the base URL and applies query parameters.
// Absolute URLs bypass the base URL.
func (c *Client) resolveURL(path string, query map[string]string) (string, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		base := c.BaseURL()
		if base == "" {
			return "", fmt.Errorf("no base URL set for relative endpoint %q", path)
		}
		base = strings.TrimRight(base, "/")
		if path != "" && !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "?") {
			path = "/" + path
		}
		target = base + path
	}

	if len(query) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", target, err)
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Response is the result of tossing a Spec.
type Response struct {
	StatusCode int
	Header     http.Header
	Raw        []byte
	Body       any // decoded JSON; nil when the body is empty or not JSON
	Duration   time.Duration

	Method    string
	URL       string
	RequestID string

	hasJSON bool
}

// HasJSON reports whether the body was decoded as JSON. A literal JSON null
// body counts as JSON.
func (r *Response) HasJSON() bool {
	return r.hasJSON
}

// Object returns the body as a JSON object, if it is one.
func (r *Response) Object() (map[string]any, bool) {
	m, ok := r.Body.(map[string]any)
	return m, ok
}

// NewResponse builds a Response from a status, headers and raw body, decoding
// the body when it is JSON.
func NewResponse(status int, header http.Header, raw []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	r := &Response{StatusCode: status, Header: header, Raw: raw}
	r.Body, r.hasJSON = decodeBody(raw)
	return r
}

func decodeBody(raw []byte) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// ResponseTimeError is returned by Toss when the response did not arrive within
// the limit registered with ExpectResponseTime. The response is still returned
// alongside it.
type ResponseTimeError struct {
	Method  string
	URL     string
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *ResponseTimeError) Error() string {
	return fmt.Sprintf("%s %s: expected response within %d ms, took %d ms",
		e.Method, e.URL, e.Limit.Milliseconds(), e.Elapsed.Milliseconds())
}

// WithinLimit reports whether elapsed meets a response-time limit. The limit
// is exclusive: a response taking exactly limit is too slow.
func WithinLimit(elapsed, limit time.Duration) bool {
	return elapsed < limit
}

// readAll reads a response body and reports how long the whole exchange took.
func readAll(body io.Reader, start time.Time) ([]byte, time.Duration, error) {
	data, err := io.ReadAll(body)
	return data, time.Since(start), err
}

func newRequestID() string {
	return uuid.NewString()
}

func dispatch(c *Client, req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Err(err).
			Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	raw, elapsed, err := readAll(resp.Body, start)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response body: %w", req.Method, req.URL, err)
	}

	out := NewResponse(resp.StatusCode, resp.Header, raw)
	out.Duration = elapsed
	out.Method = req.Method
	out.URL = req.URL.String()
	out.RequestID = req.Header.Get(RequestIDHeader)

	c.logger.Debug().
		Str("method", out.Method).
		Str("url", out.URL).
		Int("status", out.StatusCode).
		Dur("duration", elapsed).
		Str("request_id", out.RequestID).
		Msg("request dispatched")

	return out, nil
}
