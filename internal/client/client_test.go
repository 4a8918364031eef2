package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// echoServer replies with a JSON description of the request it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
			"headers": headers,
			"body":    string(body),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestToss_DefaultsAndSpecHeaders(t *testing.T) {
	srv := echoServer(t)
	c := New(Options{BaseURL: srv.URL})
	c.SetDefaultHeaders(map[string]string{
		"authorization": "Bearer abc",
		"Content-Type":  "text/plain",
	})

	resp, err := c.NewSpec().
		Post("/users").
		WithHeaders(map[string]string{"Content-Type": "application/json"}).
		WithJSON(map[string]any{"name": "Bob"}).
		Toss(context.Background())
	if err != nil {
		t.Fatalf("Toss() error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, ok := resp.Object()
	if !ok {
		t.Fatalf("expected JSON object body, got %s", resp.Raw)
	}
	if body["method"] != "POST" || body["path"] != "/users" {
		t.Errorf("unexpected request line: %v %v", body["method"], body["path"])
	}
	if body["body"] != `{"name":"Bob"}` {
		t.Errorf("unexpected body sent: %v", body["body"])
	}

	headers := body["headers"].(map[string]any)
	if headers["Authorization"] != "Bearer abc" {
		t.Errorf("default Authorization header missing: %v", headers)
	}
	if headers["Content-Type"] != "application/json" {
		t.Errorf("spec header should win over default, got %v", headers["Content-Type"])
	}
	if headers[RequestIDHeader] == "" || headers[RequestIDHeader] != resp.RequestID {
		t.Errorf("request id header = %v, response.RequestID = %q", headers[RequestIDHeader], resp.RequestID)
	}
}

func TestToss_QueryParams(t *testing.T) {
	srv := echoServer(t)
	c := New(Options{BaseURL: srv.URL + "/"})

	resp, err := c.NewSpec().
		Get("users?sort=asc").
		WithQueryParams(map[string]string{"limit": "5"}).
		Toss(context.Background())
	if err != nil {
		t.Fatalf("Toss() error: %v", err)
	}

	body, _ := resp.Object()
	if body["path"] != "/users" {
		t.Errorf("path = %v, want /users", body["path"])
	}
	if body["query"] != "limit=5&sort=asc" {
		t.Errorf("query = %v, want limit=5&sort=asc", body["query"])
	}
}

func TestToss_AbsoluteURLIgnoresBase(t *testing.T) {
	srv := echoServer(t)
	c := New(Options{BaseURL: "http://unused.invalid"})

	resp, err := c.NewSpec().Delete(srv.URL + "/users/3").Toss(context.Background())
	if err != nil {
		t.Fatalf("Toss() error: %v", err)
	}
	body, _ := resp.Object()
	if body["method"] != "DELETE" || body["path"] != "/users/3" {
		t.Errorf("unexpected request: %v", body)
	}
}

func TestToss_Errors(t *testing.T) {
	c := New(Options{})

	if _, err := c.NewSpec().Toss(context.Background()); !errors.Is(err, ErrNoMethod) {
		t.Errorf("expected ErrNoMethod, got %v", err)
	}
	if _, err := c.NewSpec().Get("/health").Toss(context.Background()); err == nil {
		t.Error("expected error for relative endpoint without base URL")
	}
}

func TestToss_ResponseTimeExpectation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	resp, err := c.NewSpec().Get("/slow").ExpectResponseTime(5 * time.Millisecond).Toss(context.Background())

	var rte *ResponseTimeError
	if !errors.As(err, &rte) {
		t.Fatalf("expected ResponseTimeError, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("response should still be returned, got %+v", resp)
	}
	if rte.Limit != 5*time.Millisecond || rte.Elapsed < 50*time.Millisecond {
		t.Errorf("unexpected timing in error: %+v", rte)
	}

	if _, err := c.NewSpec().Get("/slow").ExpectResponseTime(5 * time.Second).Toss(context.Background()); err != nil {
		t.Errorf("generous limit should pass, got %v", err)
	}
}

func TestResponse_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	resp, err := New(Options{BaseURL: srv.URL}).NewSpec().Get("/").Toss(context.Background())
	if err != nil {
		t.Fatalf("Toss() error: %v", err)
	}
	if resp.HasJSON() || resp.Body != nil {
		t.Errorf("expected no JSON body, got %v", resp.Body)
	}
	if string(resp.Raw) != "plain text" {
		t.Errorf("Raw = %q", resp.Raw)
	}
}

func TestSpec_Accessors(t *testing.T) {
	s := New(Options{}).NewSpec()
	if !s.IsEmpty() {
		t.Fatal("new spec should be empty")
	}
	if _, attached := s.QueryParams(); attached {
		t.Error("no query params should be attached on a new spec")
	}

	s.Patch("/users/1").WithQueryParams(map[string]string{})
	if s.IsEmpty() {
		t.Error("spec with a verb should not be empty")
	}
	if _, attached := s.QueryParams(); !attached {
		t.Error("an empty map still counts as attached")
	}
	if s.Method() != http.MethodPatch || s.Path() != "/users/1" {
		t.Errorf("Method/Path = %s %s", s.Method(), s.Path())
	}

	s.WithHeaders(map[string]string{"x-trace": "1"}).ExpectResponseTime(250 * time.Millisecond)
	if got := s.Headers(); got["X-Trace"] != "1" {
		t.Errorf("Headers() = %v, want canonical X-Trace", got)
	}
	if got := s.ResponseTimeLimit(); got != 250*time.Millisecond {
		t.Errorf("ResponseTimeLimit() = %s", got)
	}
}

func TestWithinLimit(t *testing.T) {
	tests := []struct {
		elapsed, limit time.Duration
		want           bool
	}{
		{99 * time.Millisecond, 100 * time.Millisecond, true},
		{100 * time.Millisecond, 100 * time.Millisecond, false},
		{101 * time.Millisecond, 100 * time.Millisecond, false},
	}
	for _, tt := range tests {
		if got := WithinLimit(tt.elapsed, tt.limit); got != tt.want {
			t.Errorf("WithinLimit(%s, %s) = %v, want %v", tt.elapsed, tt.limit, got, tt.want)
		}
	}
}
