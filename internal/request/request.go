// Package request turns a declarative request description into a dispatched
// HTTP call on the scenario's current spec.
package request

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/abel-apply/apicheck/internal/client"
	"github.com/abel-apply/apicheck/internal/harness"
)

// DefaultContentType is sent unless the description overrides Content-Type.
const DefaultContentType = "application/json"

// Description is one request as written in a scenario step.
type Description struct {
	Method       string
	Endpoint     string
	Body         string // raw JSON text; empty means no body, blank text is malformed
	Headers      map[string]string
	QueryParams  map[string]string
	ResponseTime time.Duration // 0 means no expectation
}

// UnsupportedMethodError is returned for verbs other than GET, POST, PUT,
// DELETE and PATCH.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported HTTP method %q", e.Method)
}

// MalformedBodyError is returned when the body text is not valid JSON.
type MalformedBodyError struct {
	Err error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("request body is not valid JSON: %v", e.Err)
}

func (e *MalformedBodyError) Unwrap() error { return e.Err }

var verbs = map[string]func(*client.Spec, string) *client.Spec{
	http.MethodGet:    (*client.Spec).Get,
	http.MethodPost:   (*client.Spec).Post,
	http.MethodPut:    (*client.Spec).Put,
	http.MethodDelete: (*client.Spec).Delete,
	http.MethodPatch:  (*client.Spec).Patch,
}

// Send builds d on the context's current spec and dispatches it. The current
// spec is always replaced afterwards, including when d is rejected before any
// network call.
func Send(ctx context.Context, hc *harness.Context, d Description) (*client.Response, error) {
	verb, ok := verbs[strings.ToUpper(d.Method)]
	if !ok {
		hc.ResetSpec()
		return nil, &UnsupportedMethodError{Method: d.Method}
	}

	var body any
	if d.Body != "" {
		if err := json.Unmarshal([]byte(d.Body), &body); err != nil {
			hc.ResetSpec()
			return nil, &MalformedBodyError{Err: err}
		}
	}

	headers := map[string]string{"Content-Type": DefaultContentType}
	for k, v := range d.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	spec := verb(hc.Spec(), d.Endpoint).WithHeaders(headers)
	if len(d.QueryParams) > 0 {
		spec.WithQueryParams(d.QueryParams)
	}
	if d.Body != "" {
		spec.WithJSON(body)
	}
	if d.ResponseTime > 0 {
		spec.ExpectResponseTime(d.ResponseTime)
	}

	hc.Logger().Debug().
		Str("method", spec.Method()).
		Str("endpoint", d.Endpoint).
		Int("headers", len(spec.Headers())).
		Dur("max_response_time", spec.ResponseTimeLimit()).
		Msg("sending request")

	return hc.Dispatch(ctx)
}
