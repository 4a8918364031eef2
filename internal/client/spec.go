package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// ErrNoMethod is returned when a Spec is tossed before a verb was chosen.
var ErrNoMethod = errors.New("spec has no request method")

// Spec describes one request that has not been sent yet. Builder methods
// mutate the Spec and return it so calls can be chained.
type Spec struct {
	client *Client

	method  string
	path    string
	headers map[string]string
	query   map[string]string // nil means no query parameters were attached
	body    any
	hasBody bool
	maxTime time.Duration
}

func (s *Spec) request(method, path string) *Spec {
	s.method = method
	s.path = path
	return s
}

// Get sets the request to GET path.
func (s *Spec) Get(path string) *Spec { return s.request(http.MethodGet, path) }

// Post sets the request to POST path.
func (s *Spec) Post(path string) *Spec { return s.request(http.MethodPost, path) }

// Put sets the request to PUT path.
func (s *Spec) Put(path string) *Spec { return s.request(http.MethodPut, path) }

// Delete sets the request to DELETE path.
func (s *Spec) Delete(path string) *Spec { return s.request(http.MethodDelete, path) }

// Patch sets the request to PATCH path.
func (s *Spec) Patch(path string) *Spec { return s.request(http.MethodPatch, path) }

// WithHeaders merges headers into the request headers.
func (s *Spec) WithHeaders(headers map[string]string) *Spec {
	if s.headers == nil {
		s.headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		s.headers[http.CanonicalHeaderKey(k)] = v
	}
	return s
}

// WithQueryParams merges params into the query string.
func (s *Spec) WithQueryParams(params map[string]string) *Spec {
	if s.query == nil {
		s.query = make(map[string]string, len(params))
	}
	for k, v := range params {
		s.query[k] = v
	}
	return s
}

// WithJSON sets v as the JSON request body.
func (s *Spec) WithJSON(v any) *Spec {
	s.body = v
	s.hasBody = true
	return s
}

// ExpectResponseTime makes Toss fail with a ResponseTimeError unless the
// response arrives in less than d.
func (s *Spec) ExpectResponseTime(d time.Duration) *Spec {
	s.maxTime = d
	return s
}

// Method returns the HTTP verb, or "" if none was chosen.
func (s *Spec) Method() string { return s.method }

// Path returns the endpoint the Spec targets.
func (s *Spec) Path() string { return s.path }

// Headers returns a copy of the request headers set on the Spec.
func (s *Spec) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

// QueryParams returns a copy of the query parameters and whether any were
// attached at all.
func (s *Spec) QueryParams() (map[string]string, bool) {
	if s.query == nil {
		return nil, false
	}
	out := make(map[string]string, len(s.query))
	for k, v := range s.query {
		out[k] = v
	}
	return out, true
}

// Body returns the JSON body and whether one was set.
func (s *Spec) Body() (any, bool) { return s.body, s.hasBody }

// ResponseTimeLimit returns the registered response-time expectation, or 0.
func (s *Spec) ResponseTimeLimit() time.Duration { return s.maxTime }

// IsEmpty reports whether nothing has been configured on the Spec yet.
func (s *Spec) IsEmpty() bool {
	return s.method == "" && s.path == "" && s.headers == nil &&
		s.query == nil && !s.hasBody && s.maxTime == 0
}

// Toss sends the request and waits for the response. When a response-time
// expectation is exceeded, both the response and a *ResponseTimeError are
// returned.
func (s *Spec) Toss(ctx context.Context) (*Response, error) {
	if s.method == "" {
		return nil, ErrNoMethod
	}

	target, err := s.client.resolveURL(s.path, s.query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if s.hasBody {
		data, err := json.Marshal(s.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range s.client.DefaultHeaders() {
		req.Header.Set(k, v)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, newRequestID())
	}

	resp, err := dispatch(s.client, req)
	if err != nil {
		return nil, err
	}

	if s.maxTime > 0 && !WithinLimit(resp.Duration, s.maxTime) {
		return resp, &ResponseTimeError{
			Method:  resp.Method,
			URL:     resp.URL,
			Limit:   s.maxTime,
			Elapsed: resp.Duration,
		}
	}
	return resp, nil
}
