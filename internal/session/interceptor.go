package session

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type retriedKey struct{}

// retryTransport replays a request once with a fresh token after a 401.
type retryTransport struct {
	base       http.RoundTripper
	manager    *Manager
	authPrefix string
}

// InstallRetryInterceptor wraps base so that a 401 on a request that has not been
// retried yet triggers exactly one Refresh and one replay with the new bearer.
// If the refresh fails the original 401 response is returned unchanged.
// apiRoot is the base URL the wrapped client resolves paths against; requests to its
// auth/ endpoints are never retried.
func (m *Manager) InstallRetryInterceptor(base http.RoundTripper, apiRoot string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, manager: m, authPrefix: authPrefix(apiRoot)}
}

// authPrefix returns the URL path under which apiRoot serves auth endpoints.
func authPrefix(apiRoot string) string {
	root := ""
	if u, err := url.Parse(apiRoot); err == nil {
		root = strings.TrimRight(u.Path, "/")
	}
	return root + "/auth/"
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if !t.replayable(req) {
		return resp, nil
	}

	stale := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	token, rerr := t.manager.refreshFrom(req.Context(), stale)
	if rerr != nil || token == "" {
		t.manager.log.Debug().
			Err(rerr).
			Str("path", req.URL.Path).
			Msg("Refresh after 401 failed, returning original response")
		return resp, nil
	}

	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.manager.log.Debug().Str("path", req.URL.Path).Msg("Replaying request with refreshed token")
	return t.base.RoundTrip(retry)
}

func (t *retryTransport) replayable(req *http.Request) bool {
	if req.Context().Value(retriedKey{}) != nil {
		return false
	}
	if strings.HasPrefix(req.URL.Path, t.authPrefix) {
		return false
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return false
	}
	return t.manager.Authenticated()
}
