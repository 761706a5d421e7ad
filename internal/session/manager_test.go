package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/events"
	testingpkg "github.com/aristath/sentinel-dashboard/internal/testing"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

var testNow = time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)

type fixture struct {
	backend *testingpkg.Backend
	storage *testingpkg.MockStorage
	emitter *testingpkg.MockEmitter
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := testingpkg.NewBackend(t)
	storage := testingpkg.NewMockStorage()
	emitter := testingpkg.NewMockEmitter()
	manager := NewManager(Config{
		Client:  transport.NewClient(backend.URL(), nil, zerolog.Nop()),
		Storage: storage,
		Now:     func() time.Time { return testNow },
		Events:  emitter,
		Log:     zerolog.Nop(),
	})
	return &fixture{backend: backend, storage: storage, emitter: emitter, manager: manager}
}

// seed persists tokens and restores them into the manager.
func (f *fixture) seed(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.storage.Set(AccessTokenKey, access))
	require.NoError(t, f.storage.Set(RefreshTokenKey, refresh))
	require.NoError(t, f.manager.Restore())
}

func TestManager_IsExpiredHonoursBuffer(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		token    string
		expected bool
	}{
		{"299s left", testingpkg.MintToken(t, "u1", testNow.Add(299*time.Second)), true},
		{"301s left", testingpkg.MintToken(t, "u1", testNow.Add(301*time.Second)), false},
		{"exactly buffer", testingpkg.MintToken(t, "u1", testNow.Add(300*time.Second)), false},
		{"already expired", testingpkg.MintToken(t, "u1", testNow.Add(-time.Minute)), true},
		{"no exp claim", testingpkg.MintTokenWithoutExpiry(t, "u1"), true},
		{"malformed", "not-a-jwt", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.manager.IsExpired(tt.token))
		})
	}
}

func TestDecodeExpiry(t *testing.T) {
	exp := testNow.Add(time.Hour)
	got, ok := DecodeExpiry(testingpkg.MintToken(t, "u1", exp))
	require.True(t, ok)
	assert.Equal(t, exp.Unix(), got.Unix())

	_, ok = DecodeExpiry("a.b.c")
	assert.False(t, ok)
}

func TestManager_EnsureValidTokenWithoutSession(t *testing.T) {
	f := newFixture(t)

	token, err := f.manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestManager_EnsureValidTokenReturnsFreshToken(t *testing.T) {
	f := newFixture(t)
	access := testingpkg.MintToken(t, "u1", testNow.Add(time.Hour))
	f.seed(t, access, "r1")

	token, err := f.manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, access, token)
	assert.Equal(t, 0, f.backend.Calls(http.MethodPost, "/auth/refresh"))
}

func TestManager_EnsureValidTokenRefreshesNearExpiry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")

	fresh := testingpkg.MintToken(t, "u1", testNow.Add(time.Hour))
	f.backend.Handle(http.MethodPost, "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refresh_token"])
		testingpkg.WriteJSON(w, http.StatusOK, map[string]string{"access_token": fresh, "refresh_token": "r2"})
	})

	token, err := f.manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, token)
	assert.False(t, f.manager.IsExpired(token))

	stored := f.storage.Snapshot()
	assert.Equal(t, fresh, stored[AccessTokenKey])
	assert.Equal(t, "r2", stored[RefreshTokenKey])
	assert.Equal(t, StateValid, f.manager.State())
	assert.Equal(t, 1, f.emitter.Count(events.TokenRefreshed))
}

func TestManager_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")
	f.backend.JSON(http.MethodPost, "/auth/refresh", http.StatusOK, map[string]string{
		"access_token": testingpkg.MintToken(t, "u1", testNow.Add(time.Hour)),
	})

	_, err := f.manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", f.manager.Tokens().RefreshToken)
	assert.Equal(t, "r1", f.storage.Snapshot()[RefreshTokenKey])
}

func TestManager_RefreshIsSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")

	fresh := testingpkg.MintToken(t, "u1", testNow.Add(time.Hour))
	var exchanges int32
	release := make(chan struct{})
	f.backend.Handle(http.MethodPost, "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		<-release
		testingpkg.WriteJSON(w, http.StatusOK, map[string]string{"access_token": fresh, "refresh_token": "r2"})
	})

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tokens[n], errs[n] = f.manager.EnsureValidToken(context.Background())
		}(i)
	}

	// Let the callers pile up behind the in-flight exchange.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fresh, tokens[i])
	}
}

func TestManager_RefreshFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")
	f.backend.JSON(http.MethodPost, "/auth/refresh", http.StatusUnauthorized, map[string]string{"error": "refresh token revoked"})

	token, err := f.manager.EnsureValidToken(context.Background())
	assert.Empty(t, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthIrrecoverable))

	assert.Empty(t, f.storage.Snapshot())
	assert.Equal(t, StateUnauthenticated, f.manager.State())
	assert.Equal(t, 1, f.emitter.Count(events.SessionExpired))

	// Terminal: no further refresh attempts without a new login.
	token, err = f.manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, 1, f.backend.Calls(http.MethodPost, "/auth/refresh"))
}

func TestManager_RefreshReturningNearExpiryToken(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"inside buffer", func(t *testing.T) string { return testingpkg.MintToken(t, "u1", testNow.Add(100*time.Second)) }},
		{"no exp claim", func(t *testing.T) string { return testingpkg.MintTokenWithoutExpiry(t, "u1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")
			f.backend.JSON(http.MethodPost, "/auth/refresh", http.StatusOK, map[string]string{
				"access_token":  tt.token(t),
				"refresh_token": "r2",
			})

			token, err := f.manager.EnsureValidToken(context.Background())
			assert.Empty(t, token)
			assert.ErrorIs(t, err, domain.ErrAuthIrrecoverable)

			assert.Empty(t, f.storage.Snapshot())
			assert.Equal(t, StateUnauthenticated, f.manager.State())
			assert.Equal(t, 1, f.emitter.Count(events.SessionExpired))
		})
	}
}

func TestManager_LogoutDuringRefreshWins(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.Handle(http.MethodPost, "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		testingpkg.WriteJSON(w, http.StatusOK, map[string]string{
			"access_token":  testingpkg.MintToken(t, "u1", testNow.Add(time.Hour)),
			"refresh_token": "r2",
		})
	})

	type outcome struct {
		token string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		token, err := f.manager.EnsureValidToken(context.Background())
		done <- outcome{token, err}
	}()

	<-started
	require.NoError(t, f.manager.Logout())
	close(release)

	res := <-done
	assert.Empty(t, res.token)
	assert.ErrorIs(t, res.err, domain.ErrAuthIrrecoverable)

	assert.Equal(t, StateUnauthenticated, f.manager.State())
	assert.Empty(t, f.manager.Tokens().AccessToken)
	assert.Empty(t, f.storage.Snapshot())
	assert.Equal(t, 0, f.emitter.Count(events.TokenRefreshed))
	assert.Equal(t, 0, f.emitter.Count(events.SessionExpired))
}

func TestManager_LoginAfterLogoutDuringRefresh(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.Handle(http.MethodPost, "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		testingpkg.WriteJSON(w, http.StatusOK, map[string]string{
			"access_token": testingpkg.MintToken(t, "u1", testNow.Add(time.Hour)),
		})
	})
	fresh := testingpkg.MintToken(t, "u2", testNow.Add(2*time.Hour))
	f.backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]interface{}{
		"access_token":  fresh,
		"refresh_token": "r-login",
		"user":          map[string]string{"id": "u2"},
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Refresh(context.Background())
		done <- err
	}()

	<-started
	require.NoError(t, f.manager.Logout())
	_, err := f.manager.Login(context.Background(), Credentials{Email: "b@example.com", Password: "secret"})
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, domain.ErrAuthIrrecoverable)

	// The stale refresh must not overwrite the new login.
	assert.Equal(t, fresh, f.manager.Tokens().AccessToken)
	assert.Equal(t, "r-login", f.storage.Snapshot()[RefreshTokenKey])
	assert.Equal(t, StateValid, f.manager.State())
}

func TestManager_RefreshWithoutRefreshToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "")

	_, err := f.manager.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthIrrecoverable)
	assert.Equal(t, 0, f.backend.TotalCalls())
	assert.False(t, f.manager.Authenticated())
}

func TestManager_RefreshHonoursCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Minute)), "r1")

	release := make(chan struct{})
	f.backend.Handle(http.MethodPost, "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		testingpkg.WriteJSON(w, http.StatusOK, map[string]string{
			"access_token": testingpkg.MintToken(t, "u1", testNow.Add(time.Hour)),
		})
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.manager.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_LoginPersistsCredentials(t *testing.T) {
	f := newFixture(t)
	access := testingpkg.MintToken(t, "u1", testNow.Add(time.Hour))
	f.backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": "r1",
		"user":          map[string]string{"id": "u1", "email": "ada@example.com"},
	})

	user, err := f.manager.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)

	assert.Equal(t, access, f.storage.Snapshot()[AccessTokenKey])
	assert.Equal(t, StateValid, f.manager.State())
	assert.Equal(t, testNow.Add(time.Hour).Unix(), f.manager.Status().ExpiresAt)
	assert.Equal(t, 1, f.emitter.Count(events.LoggedIn))
}

func TestManager_LoginValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Login(context.Background(), Credentials{Password: "x"})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "email", validation.Field)

	_, err = f.manager.Register(context.Background(), Registration{Email: "a@b.c", Password: "short"})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)

	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestManager_LoginRejected(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodPost, "/auth/login", http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})

	_, err := f.manager.Login(context.Background(), Credentials{Email: "a@b.c", Password: "nope"})
	require.Error(t, err)

	var status *domain.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, "invalid credentials", status.Message)
	assert.False(t, f.manager.Authenticated())
}

func TestManager_Verify(t *testing.T) {
	f := newFixture(t)
	access := testingpkg.MintToken(t, "u1", testNow.Add(time.Hour))
	f.seed(t, access, "r1")
	f.backend.Handle(http.MethodGet, "/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
		testingpkg.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"id": "u1"}})
	})

	user, err := f.manager.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "u1", f.manager.Status().User.ID)
}

func TestManager_VerifyWithoutSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Verify(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestManager_Logout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testingpkg.MintToken(t, "u1", testNow.Add(time.Hour)), "r1")

	require.NoError(t, f.manager.Logout())

	assert.Empty(t, f.storage.Snapshot())
	assert.Equal(t, StateUnauthenticated, f.manager.State())
	assert.Equal(t, 1, f.emitter.Count(events.LoggedOut))
}

func TestManager_RestoreStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.storage.SetFailing(true)

	assert.ErrorIs(t, f.manager.Restore(), testingpkg.ErrMockStorage)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "valid", StateValid.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
}
