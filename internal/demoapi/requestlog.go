package demoapi

import (
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogEntry captures one request received by the demo API.
type RequestLogEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Query         string        `json:"query,omitempty"`
	Authorization string        `json:"authorization,omitempty"`
	StatusCode    int           `json:"status_code"`
	Duration      time.Duration `json:"duration_ms"`
	RequestID     string        `json:"request_id,omitempty"`
}

// RequestLog keeps the most recent requests in a fixed-capacity ring. Once
// full, each new entry overwrites the oldest one.
type RequestLog struct {
	mu    sync.RWMutex
	ring  []RequestLogEntry
	next  int // slot the next entry is written to
	count int // entries held, at most len(ring)
}

// NewRequestLog returns a log holding at most capacity entries.
func NewRequestLog(capacity int) *RequestLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &RequestLog{ring: make([]RequestLogEntry, capacity)}
}

// Add records entry.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.ring[rl.next] = entry
	rl.next = (rl.next + 1) % len(rl.ring)
	if rl.count < len(rl.ring) {
		rl.count++
	}
}

// each calls fn on the held entries, oldest first. Callers hold the lock.
func (rl *RequestLog) each(fn func(RequestLogEntry)) {
	start := (rl.next - rl.count + len(rl.ring)) % len(rl.ring)
	for i := 0; i < rl.count; i++ {
		fn(rl.ring[(start+i)%len(rl.ring)])
	}
}

// Entries returns the held entries, oldest first.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, 0, rl.count)
	rl.each(func(e RequestLogEntry) { out = append(out, e) })
	return out
}

// Count returns how many held entries match method and path.
func (rl *RequestLog) Count(method, path string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	n := 0
	rl.each(func(e RequestLogEntry) {
		if e.Method == method && e.Path == path {
			n++
		}
	})
	return n
}

// Last returns the newest entry.
func (rl *RequestLog) Last() (RequestLogEntry, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rl.count == 0 {
		return RequestLogEntry{}, false
	}
	return rl.ring[(rl.next-1+len(rl.ring))%len(rl.ring)], true
}

// Clear drops every entry.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	clear(rl.ring)
	rl.next, rl.count = 0, 0
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestLog records every request into the ring buffer and the debug log.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		entry := RequestLogEntry{
			Timestamp:     start,
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			StatusCode:    rec.statusCode,
			Duration:      time.Since(start),
			RequestID:     chimw.GetReqID(r.Context()),
		}
		s.Log.Add(entry)

		s.logger.Debug().
			Str("method", entry.Method).
			Str("path", entry.Path).
			Int("status", entry.StatusCode).
			Dur("duration", entry.Duration).
			Str("request_id", entry.RequestID).
			Msg("request")
	})
}
