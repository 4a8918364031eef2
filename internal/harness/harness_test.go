package harness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/abel-apply/apicheck/internal/client"
)

func newTestRun(t *testing.T, handler http.HandlerFunc) *Run {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRun(client.New(client.Options{BaseURL: srv.URL}), zerolog.Nop())
}

func TestContext_LastResponseBeforeDispatch(t *testing.T) {
	run := NewRun(client.New(client.Options{}), zerolog.Nop())
	hc := run.NewContext()

	if _, err := hc.LastResponse(); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if hc.Spec() == nil || !hc.Spec().IsEmpty() {
		t.Fatal("a new context should hold an empty spec")
	}
}

func TestContext_DispatchCapturesAndResets(t *testing.T) {
	run := newTestRun(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 1}`))
	})
	hc := run.NewContext()

	dispatched := hc.Spec()
	dispatched.Post("/users").WithJSON(map[string]any{"name": "Bob"})

	resp, err := hc.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	last, err := hc.LastResponse()
	if err != nil {
		t.Fatalf("LastResponse() error: %v", err)
	}
	if last != resp || last.StatusCode != http.StatusCreated {
		t.Errorf("LastResponse() = %+v, want the dispatched response", last)
	}

	if hc.Spec() == dispatched {
		t.Error("current spec was not replaced after dispatch")
	}
	if !hc.Spec().IsEmpty() {
		t.Error("replacement spec should be empty")
	}
}

func TestContext_DispatchFailureStillResets(t *testing.T) {
	run := NewRun(client.New(client.Options{}), zerolog.Nop())
	hc := run.NewContext()

	hc.Spec().Get("/no-base-url")
	failed := hc.Spec()
	if _, err := hc.Dispatch(context.Background()); err == nil {
		t.Fatal("expected dispatch without base URL to fail")
	}
	if hc.Spec() == failed || !hc.Spec().IsEmpty() {
		t.Error("spec should be reset after a failed dispatch")
	}
	if _, err := hc.LastResponse(); !errors.Is(err, ErrNoResponse) {
		t.Errorf("failed dispatch should leave no response, got %v", err)
	}
}

func TestContext_TransportFailureKeepsLastResponse(t *testing.T) {
	run := newTestRun(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1}`))
	})
	hc := run.NewContext()

	hc.Spec().Get("/users/1")
	first, err := hc.Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	hc.Spec().Get(dead.URL + "/users/2")
	if _, err := hc.Dispatch(context.Background()); err == nil {
		t.Fatal("expected a transport error")
	}

	last, err := hc.LastResponse()
	if err != nil || last != first {
		t.Errorf("LastResponse() = %v, %v; want the last completed response", last, err)
	}
}

func TestContext_SetBaseURLIsGlobal(t *testing.T) {
	run := NewRun(client.New(client.Options{}), zerolog.Nop())
	first := run.NewContext()
	first.SetBaseURL("http://api.example.test")

	if got := run.Client.BaseURL(); got != "http://api.example.test" {
		t.Errorf("client base URL = %q", got)
	}
	second := run.NewContext()
	if second.BaseURL() != "http://api.example.test" {
		t.Errorf("next scenario should inherit the base URL, got %q", second.BaseURL())
	}
}

func TestContext_StashSharedAcrossScenarios(t *testing.T) {
	run := NewRun(client.New(client.Options{}), zerolog.Nop())
	run.NewContext().Stash().Put("userId", float64(7))

	if got := run.NewContext().Resolve("/users/{userId}"); got != "/users/7" {
		t.Errorf("Resolve() = %q, want /users/7", got)
	}
}
