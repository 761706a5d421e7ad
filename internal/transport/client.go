// Package transport is the raw HTTP layer between the dashboard and its backend API.
// It knows how to build URLs, encode JSON bodies, and classify failures; it knows nothing
// about caching, batching or sessions.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

const (
	// RequestIDHeader correlates a dashboard request with backend logs.
	RequestIDHeader = "X-Request-ID"

	// maxLoggedBody caps response bodies copied into logs and errors.
	maxLoggedBody = 500
)

// Request is one logical call against the API root. Path is relative to the root
// (e.g. "/stocks"), matching the paths used inside aggregate batches.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	Header http.Header
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Doer executes a Request. *Client is the production implementation.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TokenSource hands out a bearer token that is safe to attach right now.
// An empty token with a nil error means there is no session.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
}

// Client issues JSON requests against the backend API root.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the API rooted at baseURL (e.g. "http://localhost:5000/api").
// httpClient may carry a retry interceptor as its Transport; nil uses a 30 second default.
func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log.With().Str("component", "transport").Logger(),
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves path and query against the API root.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do executes req. Network failures come back as *domain.TransportError and non-2xx
// replies as *domain.StatusError, so callers can tell the two apart with errors.As.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	requestURL := c.URL(req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body for %s %s: %w", method, req.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Debug().
			Err(err).
			Str("method", method).
			Str("path", req.Path).
			Msg("Request failed")
		return nil, &domain.TransportError{Op: method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: method, Path: req.Path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration_ms", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.StatusError{
			Status:  resp.StatusCode,
			Path:    req.Path,
			Message: errorMessage(raw),
		}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   json.RawMessage(raw),
	}, nil
}

// DoJSON executes req and decodes the reply into out (out may be nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out interface{}) error {
	return DoJSON(ctx, c, req, out)
}

// DoJSON executes req on any Doer and decodes the reply into out (out may be nil).
func DoJSON(ctx context.Context, d Doer, req Request, out interface{}) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}

// BearerHeader builds an Authorization header from ts. A missing or unobtainable token
// yields an empty header so the call degrades to unauthenticated.
func BearerHeader(ctx context.Context, ts TokenSource) http.Header {
	header := http.Header{}
	if ts == nil {
		return header
	}
	token, err := ts.EnsureValidToken(ctx)
	if err != nil || token == "" {
		return header
	}
	header.Set("Authorization", "Bearer "+token)
	return header
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error body,
// falling back to the truncated raw body.
func errorMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	text := strings.TrimSpace(string(raw))
	if len(text) > maxLoggedBody {
		text = text[:maxLoggedBody] + "..."
	}
	return text
}
