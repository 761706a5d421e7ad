package di

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/config"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/session"
	testingpkg "github.com/aristath/sentinel-dashboard/internal/testing"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	return &config.Config{
		APIURL:               apiURL,
		DataDir:              t.TempDir(),
		Port:                 8080,
		HTTPTimeout:          5 * time.Second,
		BatchWindow:          10 * time.Millisecond,
		BatchMaxSize:         25,
		SessionCheckInterval: time.Minute,
		UIRefreshInterval:    time.Minute,
		CacheSweepInterval:   5 * time.Minute,
		AuthRefreshBuffer:    300 * time.Second,
	}
}

func TestWire(t *testing.T) {
	backend := testingpkg.NewBackend(t)
	cfg := testConfig(t, backend.URL())

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.ClientDataDB)
	assert.NotNil(t, container.CredentialsRepo)
	assert.NotNil(t, container.Session)
	assert.NotNil(t, container.Coalescer)
	assert.NotNil(t, container.Data)
	assert.NotNil(t, container.Visibility)
	assert.NotSame(t, container.AuthClient, container.APIClient)

	assert.Equal(t, "session_liveness", jobs.SessionLiveness.Name())
	assert.Equal(t, "ui_refresh", jobs.UIRefresh.Name())
	assert.Equal(t, "cache_sweep", jobs.CacheSweep.Name())
	assert.Equal(t, []string{"cache_sweep", "session_liveness", "ui_refresh"}, container.Scheduler.Jobs())
	assert.False(t, container.Session.Authenticated())
}

func TestWire_CoalescingDisabled(t *testing.T) {
	backend := testingpkg.NewBackend(t)
	cfg := testConfig(t, backend.URL())
	cfg.BatchWindow = 0

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, container.Coalescer)
}

func TestWire_SessionSurvivesRestart(t *testing.T) {
	backend := testingpkg.NewBackend(t)
	token := testingpkg.MintToken(t, "u1", time.Now().Add(time.Hour))
	backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]interface{}{
		"access_token":  token,
		"refresh_token": "r1",
		"user":          map[string]string{"id": "u1"},
	})
	cfg := testConfig(t, backend.URL())

	first, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.Data.Login(context.Background(), session.Credentials{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.True(t, second.Session.Authenticated())
	stored, ok, err := second.CredentialsRepo.Get(session.AccessTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token, stored)
}

func TestWire_SessionExpiredDropsUserData(t *testing.T) {
	backend := testingpkg.NewBackend(t)
	cfg := testConfig(t, backend.URL())

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	container.Cache.Set("portfolio_u1", "holdings", time.Minute, cache.PriorityMedium)
	container.Cache.Set("stocks", "quotes", time.Minute, cache.PriorityHigh)

	container.EventBus.Emit(events.SessionExpired, "session", &events.SessionExpiredData{Reason: "refresh rejected"})

	assert.False(t, container.Cache.Has("portfolio_u1"))
	assert.True(t, container.Cache.Has("stocks"))
}

func TestWire_InvalidDataDir(t *testing.T) {
	cfg := testConfig(t, "http://localhost:5000/api")
	cfg.DataDir = "/dev/null/not-a-dir"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestInitializeServices_RequiresRepositories(t *testing.T) {
	err := InitializeServices(&Container{}, testConfig(t, "http://localhost:5000/api"), zerolog.Nop())
	assert.Error(t, err)
}
