// Package harness holds the state shared by step definitions: a run-scoped Run
// (HTTP client defaults, stash, logger) and a per-scenario Context owning the
// request being built and the last response received.
package harness

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/abel-apply/apicheck/internal/client"
	"github.com/abel-apply/apicheck/internal/stash"
)

// ErrNoResponse is returned by LastResponse before any request was dispatched
// in the scenario.
var ErrNoResponse = errors.New("no response available: send a request first")

// Run is the state that lives for a whole test run.
type Run struct {
	Client *client.Client
	Stash  *stash.Stash
	Logger zerolog.Logger
}

// NewRun creates a Run around an existing client.
func NewRun(c *client.Client, logger zerolog.Logger) *Run {
	return &Run{
		Client: c,
		Stash:  stash.New(),
		Logger: logger,
	}
}

// NewContext creates the per-scenario state. The base URL starts out as the
// client's current global base URL.
func (r *Run) NewContext() *Context {
	return &Context{
		run:     r,
		current: r.Client.NewSpec(),
		baseURL: r.Client.BaseURL(),
	}
}

// Context is the state of one scenario. It always holds a current spec; the
// last response is absent until the first dispatch.
type Context struct {
	run     *Run
	current *client.Spec
	last    *client.Response
	baseURL string
}

// Run returns the run this context belongs to.
func (c *Context) Run() *Run { return c.run }

// Stash returns the run's stash.
func (c *Context) Stash() *stash.Stash { return c.run.Stash }

// Logger returns the run's logger.
func (c *Context) Logger() *zerolog.Logger { return &c.run.Logger }

// Resolve substitutes {name} placeholders in text from the stash and logs any
// that remain unresolved.
func (c *Context) Resolve(text string) string {
	out := c.run.Stash.Resolve(text)
	if keys := stash.Placeholders(out); len(keys) > 0 {
		c.run.Logger.Debug().Strs("keys", keys).Msg("unresolved placeholders left in text")
	}
	return out
}

// Spec returns the request currently being built.
func (c *Context) Spec() *client.Spec { return c.current }

// ResetSpec discards the current spec and starts a fresh one.
func (c *Context) ResetSpec() {
	c.current = c.run.Client.NewSpec()
}

// SetBaseURL records url and makes it the client's global base URL so every
// later spec, in this scenario or the next, targets it.
func (c *Context) SetBaseURL(url string) {
	c.baseURL = url
	c.run.Client.SetBaseURL(url)
}

// BaseURL returns the base URL last set through this context.
func (c *Context) BaseURL() string { return c.baseURL }

// Dispatch sends the current spec, stores what came back as the last response
// and replaces the current spec with a fresh one. The spec is replaced even
// when sending fails. A transport failure keeps the previous last response; an
// exceeded response-time expectation stores the response and still returns
// the error.
func (c *Context) Dispatch(ctx context.Context) (*client.Response, error) {
	spec := c.current
	defer c.ResetSpec()

	resp, err := spec.Toss(ctx)
	if resp != nil {
		c.last = resp
	}
	return resp, err
}

// LastResponse returns the most recent response of this scenario.
func (c *Context) LastResponse() (*client.Response, error) {
	if c.last == nil {
		return nil, ErrNoResponse
	}
	return c.last, nil
}
