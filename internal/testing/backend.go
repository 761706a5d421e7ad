package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Backend is a fake of the dashboard backend API served under /api.
// Routes are matched on the exact method and path below /api.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	calls    map[string]int
	requests []*http.Request
	bodies   [][]byte
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		routes: make(map[string]http.HandlerFunc),
		calls:  make(map[string]int),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API root the data-access layer should be pointed at.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// Handle registers h for method and path (relative to /api).
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[routeKey(method, path)] = h
}

// JSON registers a handler that always answers with status and body.
func (b *Backend) JSON(method, path string, status int, body interface{}) {
	b.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Calls returns how many times method and path were requested.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[routeKey(method, path)]
}

// TotalCalls returns the number of requests received.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// LastRequest returns the most recent request and its body.
func (b *Backend) LastRequest() (*http.Request, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil, nil
	}
	n := len(b.requests) - 1
	return b.requests[n], b.bodies[n]
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	key := routeKey(r.Method, path)

	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	b.mu.Lock()
	b.calls[key]++
	b.requests = append(b.requests, r)
	b.bodies = append(b.bodies, body)
	h, ok := b.routes[key]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no route for " + key})
		return
	}

	// Handlers may want to decode the body themselves.
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

// WriteJSON writes body as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func routeKey(method, path string) string {
	return method + " " + path
}
