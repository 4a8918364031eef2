package demoapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// Fault is a canned response served instead of the real handler for one path.
type Fault struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
	DelayMs    int    `json:"delay_ms,omitempty"`
}

// FaultRegistry maps request paths to injected faults.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]Fault
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]Fault)}
}

// Set injects f for path, replacing any previous fault.
func (fr *FaultRegistry) Set(path string, f Fault) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults[path] = f
}

// Remove deletes the fault for path and reports whether one existed.
func (fr *FaultRegistry) Remove(path string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[path]
	delete(fr.faults, path)
	return existed
}

// Check returns the fault registered for path, if any.
func (fr *FaultRegistry) Check(path string) (Fault, bool) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	f, ok := fr.faults[path]
	return f, ok
}

// All returns a copy of every registered fault.
func (fr *FaultRegistry) All() map[string]Fault {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]Fault, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]Fault)
}

// injectFaults serves registered faults. It wraps the API routes only, so the
// admin endpoints can always clear a fault.
func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.Faults.Check(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(f.DelayMs) * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		if f.StatusCode == 0 {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.StatusCode)
		if f.Body != "" {
			fmt.Fprint(w, f.Body)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "injected fault"})
	})
}

func (s *Server) adminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", s.handleReset)
		r.Get("/requests", s.handleRequests)
		r.Get("/faults", s.handleListFaults)
		r.Post("/faults/*", s.handleInjectFault)
		r.Delete("/faults/*", s.handleRemoveFault)
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Reset()
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, s.Log.Entries())
}

func (s *Server) handleListFaults(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, s.Faults.All())
}

func (s *Server) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")

	var f Fault
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		Error(w, http.StatusBadRequest, "invalid fault: "+err.Error())
		return
	}
	if f.StatusCode == 0 && f.DelayMs <= 0 {
		Error(w, http.StatusBadRequest, "fault needs a status_code or a delay_ms")
		return
	}
	if f.DelayMs > int(s.maxDelay/time.Millisecond) {
		f.DelayMs = int(s.maxDelay / time.Millisecond)
	}
	s.Faults.Set(path, f)
	s.logger.Info().Str("path", path).Int("status", f.StatusCode).Int("delay_ms", f.DelayMs).Msg("fault injected")
	JSON(w, http.StatusOK, map[string]any{"status": "injected", "path": path, "fault": f})
}

func (s *Server) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	if !s.Faults.Remove(path) {
		Error(w, http.StatusNotFound, "no fault registered for "+path)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": "removed", "path": path})
}
