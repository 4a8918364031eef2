package demoapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Options{Secret: "test-secret", MaxDelay: time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func do(t *testing.T, method, url, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	status, body := do(t, "GET", srv.URL+"/health", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /health = %d %v", status, body)
	}
}

func TestLogin(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"valid", `{"username":"emilys","password":"emilyspass"}`, http.StatusOK, ""},
		{"wrong password", `{"username":"emilys","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"missing fields", `{"username":"emilys"}`, http.StatusBadRequest, "Username and password required"},
		{"bad json", `{"username":`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, "POST", srv.URL+"/auth/login", tt.body, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if tt.wantMsg != "" && body["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMsg)
			}
			if tt.wantStatus == http.StatusOK {
				if body["accessToken"] == "" || body["refreshToken"] == "" || body["id"] != float64(1) {
					t.Errorf("unexpected login body: %v", body)
				}
			}
		})
	}
}

func TestMe(t *testing.T) {
	_, srv := newTestServer(t)

	_, login := do(t, "POST", srv.URL+"/auth/login", `{"username":"sophiab","password":"sophiabpass"}`, nil)
	token, _ := login["accessToken"].(string)
	refresh, _ := login["refreshToken"].(string)

	status, me := do(t, "GET", srv.URL+"/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	if status != http.StatusOK || me["username"] != "sophiab" {
		t.Errorf("GET /auth/me = %d %v", status, me)
	}
	if _, leaked := me["password"]; leaked {
		t.Error("password must not be serialized")
	}

	for name, auth := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic abc",
		"garbage":       "Bearer not-a-jwt",
		"refresh token": "Bearer " + refresh,
	} {
		t.Run(name, func(t *testing.T) {
			headers := map[string]string{}
			if auth != "" {
				headers["Authorization"] = auth
			}
			if status, _ := do(t, "GET", srv.URL+"/auth/me", "", headers); status != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", status)
			}
		})
	}
}

func TestUsersCRUD(t *testing.T) {
	_, srv := newTestServer(t)

	status, list := do(t, "GET", srv.URL+"/users?limit=2&skip=1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list["total"] != float64(3) || list["skip"] != float64(1) || list["limit"] != float64(2) {
		t.Errorf("unexpected page: %v", list)
	}
	if users := list["users"].([]any); users[0].(map[string]any)["id"] != float64(2) {
		t.Errorf("first user on page = %v", users[0])
	}

	if status, _ := do(t, "GET", srv.URL+"/users?limit=abc", "", nil); status != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", status)
	}

	status, created := do(t, "POST", srv.URL+"/users", `{"firstName":"Ada","lastName":"Lovelace","age":36}`, nil)
	if status != http.StatusCreated || created["id"] != float64(4) || created["firstName"] != "Ada" {
		t.Fatalf("POST /users = %d %v", status, created)
	}
	if status, _ := do(t, "POST", srv.URL+"/users", `{"lastName":"X"}`, nil); status != http.StatusBadRequest {
		t.Errorf("missing firstName status = %d", status)
	}

	status, patched := do(t, "PATCH", srv.URL+"/users/4", `{"age":37}`, nil)
	if status != http.StatusOK || patched["age"] != float64(37) || patched["firstName"] != "Ada" {
		t.Errorf("PATCH = %d %v", status, patched)
	}

	status, put := do(t, "PUT", srv.URL+"/users/4", `{"lastName":"King"}`, nil)
	if status != http.StatusOK || put["lastName"] != "King" {
		t.Errorf("PUT = %d %v", status, put)
	}

	status, deleted := do(t, "DELETE", srv.URL+"/users/4", "", nil)
	if status != http.StatusOK || deleted["isDeleted"] != true || deleted["id"] != float64(4) {
		t.Errorf("DELETE = %d %v", status, deleted)
	}

	if status, body := do(t, "GET", srv.URL+"/users/4", "", nil); status != http.StatusNotFound {
		t.Errorf("GET deleted = %d %v", status, body)
	}
	if status, _ := do(t, "GET", srv.URL+"/users/abc", "", nil); status != http.StatusBadRequest {
		t.Errorf("GET bad id = %d", status)
	}
}

func TestSlow(t *testing.T) {
	_, srv := newTestServer(t)

	start := time.Now()
	status, body := do(t, "GET", srv.URL+"/slow?ms=50", "", nil)
	if status != http.StatusOK || body["delayedMs"] != float64(50) {
		t.Errorf("GET /slow = %d %v", status, body)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("response came back before the requested delay")
	}

	_, capped := do(t, "GET", srv.URL+"/slow?ms=60000", "", nil)
	if capped["delayedMs"] != float64(1000) {
		t.Errorf("delay should be capped at MaxDelay, got %v", capped["delayedMs"])
	}

	start = time.Now()
	_, huge := do(t, "GET", srv.URL+"/slow?ms=9223372036854775807", "", nil)
	if huge["delayedMs"] != float64(1000) || time.Since(start) < time.Second {
		t.Errorf("an overflowing delay should still be capped at MaxDelay, got %v", huge["delayedMs"])
	}
}

func TestListUsers_HugeLimit(t *testing.T) {
	_, srv := newTestServer(t)
	status, body := do(t, "GET", srv.URL+"/users?skip=1&limit=9223372036854775807", "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /users with a huge limit = %d %v", status, body)
	}
	if body["total"] != float64(3) || len(body["users"].([]any)) != 2 {
		t.Errorf("page = %v", body)
	}
}

func TestRequestLog(t *testing.T) {
	s, srv := newTestServer(t)

	do(t, "POST", srv.URL+"/auth/login", `{"username":"emilys","password":"emilyspass"}`, nil)
	do(t, "GET", srv.URL+"/users?limit=1", "", map[string]string{"Authorization": "Bearer abc", "X-Request-Id": "req-1"})

	if n := s.Log.Count("POST", "/auth/login"); n != 1 {
		t.Errorf("login count = %d, want 1", n)
	}
	last, ok := s.Log.Last()
	if !ok {
		t.Fatal("expected log entries")
	}
	if last.Path != "/users" || last.Query != "limit=1" || last.Authorization != "Bearer abc" || last.RequestID != "req-1" {
		t.Errorf("unexpected last entry: %+v", last)
	}

	s.Reset()
	if len(s.Log.Entries()) != 0 {
		t.Error("Reset should clear the request log")
	}
}

func TestRequestLogRingBuffer(t *testing.T) {
	rl := NewRequestLog(2)
	rl.Add(RequestLogEntry{Path: "/a"})
	rl.Add(RequestLogEntry{Path: "/b"})
	rl.Add(RequestLogEntry{Path: "/c"})

	entries := rl.Entries()
	if len(entries) != 2 || entries[0].Path != "/b" || entries[1].Path != "/c" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if last, ok := rl.Last(); !ok || last.Path != "/c" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if n := rl.Count("", "/a"); n != 0 {
		t.Errorf("evicted entry still counted: %d", n)
	}

	rl.Clear()
	if _, ok := rl.Last(); ok || len(rl.Entries()) != 0 {
		t.Error("Clear should empty the log")
	}
	rl.Add(RequestLogEntry{Path: "/d"})
	if entries := rl.Entries(); len(entries) != 1 || entries[0].Path != "/d" {
		t.Errorf("entries after Clear: %+v", entries)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
