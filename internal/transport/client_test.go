package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) EnsureValidToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestClient_DoSendsJSONAndRequestID(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotRequestID, gotContentType string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api/", nil, zerolog.Nop())
	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/watchlist/add",
		Query:  url.Values{"dry_run": {"1"}},
		Body:   map[string]string{"ticker": "AAPL"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/watchlist/add", gotPath)
	assert.Equal(t, "dry_run=1", gotQuery)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "AAPL", gotBody["ticker"])

	_, err = uuid.Parse(gotRequestID)
	assert.NoError(t, err, "request id should be a uuid")
}

func TestClient_DoKeepsCallerRequestID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set(RequestIDHeader, "fixed-id")

	_, err := NewClient(server.URL, nil, zerolog.Nop()).Do(context.Background(), Request{Path: "/stocks", Header: header})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", got)
}

func TestClient_DoStatusError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusConflict, `{"error":"already watched"}`, "already watched"},
		{"message field", http.StatusBadRequest, `{"message":"bad ticker"}`, "bad ticker"},
		{"plain text", http.StatusInternalServerError, "boom", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, nil, zerolog.Nop()).Do(context.Background(), Request{Path: "/x"})

			var status *domain.StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.message, status.Message)
			assert.Equal(t, "/x", status.Path)
		})
	}
}

func TestClient_DoTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	_, err := NewClient(baseURL, nil, zerolog.Nop()).Do(context.Background(), Request{Path: "/stocks"})

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.MethodGet, te.Op)
	assert.Equal(t, "/stocks", te.Path)
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stocks":[{"ticker":"AAPL","name":"Apple","price":1}]}`))
	}))
	defer server.Close()

	var list domain.StockList
	err := NewClient(server.URL, nil, zerolog.Nop()).DoJSON(context.Background(), Request{Path: "/stocks"}, &list)
	require.NoError(t, err)
	require.Len(t, list.Stocks, 1)
	assert.Equal(t, "AAPL", list.Stocks[0].Ticker)
}

func TestDoJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(server.URL, nil, zerolog.Nop()).DoJSON(context.Background(), Request{Path: "/stocks"}, &out)
	assert.Error(t, err)
}

func TestBearerHeader(t *testing.T) {
	ctx := context.Background()

	h := BearerHeader(ctx, staticTokens{token: "abc"})
	assert.Equal(t, "Bearer abc", h.Get("Authorization"))

	assert.Empty(t, BearerHeader(ctx, staticTokens{}).Get("Authorization"))
	assert.Empty(t, BearerHeader(ctx, staticTokens{err: errors.New("refresh failed")}).Get("Authorization"))
	assert.Empty(t, BearerHeader(ctx, nil).Get("Authorization"))
}

func TestClient_URL(t *testing.T) {
	c := NewClient("http://localhost:5000/api/", nil, zerolog.Nop())

	assert.Equal(t, "http://localhost:5000/api/stocks", c.URL("/stocks", nil))
	assert.Equal(t, "http://localhost:5000/api/stocks/AAPL?interval=1d&period=1y",
		c.URL("stocks/AAPL", url.Values{"period": {"1y"}, "interval": {"1d"}}))
}
