// Package session owns the bearer-token lifecycle: it persists the access/refresh pair,
// refreshes proactively before expiry, and refreshes reactively when the backend answers 401.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

const moduleName = "session"

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// authResponse is what login, register and refresh return.
type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user,omitempty"`
}

// Status is the externally visible session summary.
type Status struct {
	State         string       `json:"state"`
	Authenticated bool         `json:"authenticated"`
	ExpiresAt     int64        `json:"expires_at,omitempty"`
	User          *domain.User `json:"user,omitempty"`
}

// Config configures a Manager.
type Config struct {
	// Client talks to the auth endpoints. It must not route through the retry
	// interceptor of the same Manager.
	Client  transport.Doer
	Storage Storage
	Buffer  time.Duration
	Now     func() time.Time
	Events  events.Emitter
	Log     zerolog.Logger
}

// Manager is safe for concurrent use.
type Manager struct {
	client  transport.Doer
	storage Storage
	buffer  time.Duration
	now     func() time.Time
	events  events.Emitter
	log     zerolog.Logger

	// persistMu serialises durable writes with clears so storage never outlives a logout.
	persistMu sync.Mutex

	mu     sync.Mutex
	tokens TokenState
	state  State
	user   *domain.User
	// generation counts clears; a response started under an older generation is stale.
	generation uint64

	refreshes singleflight.Group
}

// NewManager creates a Manager with no credentials loaded; call Restore to pick up
// credentials persisted by a previous process.
func NewManager(cfg Config) *Manager {
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultRefreshBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		client:  cfg.Client,
		storage: cfg.Storage,
		buffer:  cfg.Buffer,
		now:     cfg.Now,
		events:  cfg.Events,
		log:     cfg.Log.With().Str("component", moduleName).Logger(),
	}
}

// Restore loads persisted credentials into memory.
func (m *Manager) Restore() error {
	access, _, err := m.storage.Get(AccessTokenKey)
	if err != nil {
		return fmt.Errorf("failed to restore access token: %w", err)
	}
	refresh, _, err := m.storage.Get(RefreshTokenKey)
	if err != nil {
		return fmt.Errorf("failed to restore refresh token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if access == "" {
		m.tokens = TokenState{}
		m.state = StateUnauthenticated
		return nil
	}

	m.tokens = newTokenState(access, refresh)
	m.state = StateValid
	m.log.Info().Int64("expires_at", m.tokens.ExpiresAt).Msg("Restored persisted session")
	return nil
}

// IsExpired reports whether token is absent, malformed, or within the refresh buffer of expiry.
func (m *Manager) IsExpired(token string) bool {
	return expiredAt(token, m.now(), m.buffer)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Authenticated reports whether credentials are held.
func (m *Manager) Authenticated() bool {
	return m.State() != StateUnauthenticated
}

// Tokens returns a copy of the held credentials.
func (m *Manager) Tokens() TokenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Status summarises the session for the UI.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:         m.state.String(),
		Authenticated: m.state != StateUnauthenticated,
		ExpiresAt:     m.tokens.ExpiresAt,
		User:          m.user,
	}
}

// EnsureValidToken returns an access token safe to attach now, refreshing first if the
// held one is near expiry. With no session it returns "" and a nil error.
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	access := m.tokens.AccessToken
	m.mu.Unlock()

	if access == "" {
		return "", nil
	}
	if !m.IsExpired(access) {
		return access, nil
	}
	return m.refreshFrom(ctx, access)
}

// Refresh exchanges the refresh token for a new access token. Concurrent callers share
// one exchange. On failure all credentials are cleared and the error wraps
// domain.ErrAuthIrrecoverable.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.refreshFrom(ctx, "")
}

// refreshFrom refreshes unless another caller already replaced stale with a usable token.
// An empty stale forces the exchange.
func (m *Manager) refreshFrom(ctx context.Context, stale string) (string, error) {
	// The exchange outlives any single caller; one caller giving up must not fail the rest.
	ch := m.refreshes.DoChan("refresh", func() (interface{}, error) {
		if stale != "" {
			current := m.Tokens().AccessToken
			if current != "" && current != stale && !m.IsExpired(current) {
				return current, nil
			}
		}
		return m.exchange(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// errSessionEnded marks a response that arrived after the session it belonged to was cleared.
var errSessionEnded = errors.New("session ended while the request was in flight")

func (m *Manager) exchange(ctx context.Context) (string, error) {
	m.mu.Lock()
	refresh := m.tokens.RefreshToken
	generation := m.generation
	if m.state != StateUnauthenticated {
		m.state = StateRefreshing
	}
	m.mu.Unlock()

	if refresh == "" {
		m.expire("no refresh token")
		return "", fmt.Errorf("%w: no refresh token", domain.ErrAuthIrrecoverable)
	}

	var resp authResponse
	err := transport.DoJSON(ctx, m.client, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refresh_token": refresh},
	}, &resp)
	if err == nil && resp.AccessToken == "" {
		err = errors.New("refresh response missing access_token")
	}
	if err == nil && expiredAt(resp.AccessToken, m.now(), m.buffer) {
		err = errors.New("refreshed access token is already within the refresh buffer")
	}
	if err != nil {
		if m.currentGeneration() != generation {
			return "", fmt.Errorf("%w: %v", domain.ErrAuthIrrecoverable, errSessionEnded)
		}
		m.log.Warn().Err(err).Msg("Token refresh failed, clearing session")
		m.expire(err.Error())
		return "", fmt.Errorf("%w: %v", domain.ErrAuthIrrecoverable, err)
	}

	if resp.RefreshToken == "" {
		resp.RefreshToken = refresh
	}
	if err := m.store(resp, generation); err != nil {
		if errors.Is(err, errSessionEnded) {
			m.log.Debug().Msg("Discarding refresh that finished after the session ended")
			return "", fmt.Errorf("%w: %v", domain.ErrAuthIrrecoverable, err)
		}
		m.expire(err.Error())
		return "", fmt.Errorf("%w: %v", domain.ErrAuthIrrecoverable, err)
	}

	state := m.Tokens()
	m.log.Debug().Int64("expires_at", state.ExpiresAt).Msg("Access token refreshed")
	m.emit(events.TokenRefreshed, &events.SessionData{Kind: events.TokenRefreshed, ExpiresAt: state.ExpiresAt})
	return resp.AccessToken, nil
}

// Login authenticates with the backend and persists the returned credentials.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*domain.User, error) {
	if creds.Email == "" {
		return nil, domain.NewValidationError("email", "required")
	}
	if creds.Password == "" {
		return nil, domain.NewValidationError("password", "required")
	}
	return m.authenticate(ctx, "/auth/login", creds, events.LoggedIn)
}

// Register creates an account and starts a session for it.
func (m *Manager) Register(ctx context.Context, reg Registration) (*domain.User, error) {
	if reg.Email == "" {
		return nil, domain.NewValidationError("email", "required")
	}
	if len(reg.Password) < 8 {
		return nil, domain.NewValidationError("password", "must be at least 8 characters")
	}
	return m.authenticate(ctx, "/auth/register", reg, events.LoggedIn)
}

func (m *Manager) authenticate(ctx context.Context, path string, body interface{}, kind events.EventType) (*domain.User, error) {
	generation := m.currentGeneration()

	var resp authResponse
	if err := transport.DoJSON(ctx, m.client, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, &resp); err != nil {
		return nil, fmt.Errorf("%s failed: %w", path, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%s failed: response missing access_token", path)
	}

	if err := m.store(resp, generation); err != nil {
		if errors.Is(err, errSessionEnded) {
			return nil, fmt.Errorf("%s failed: %w", path, domain.ErrAuthRequired)
		}
		return nil, err
	}

	userID := ""
	if resp.User != nil {
		userID = resp.User.ID
	}
	state := m.Tokens()
	m.log.Info().Str("user_id", userID).Msg("Session started")
	m.emit(kind, &events.SessionData{Kind: kind, UserID: userID, ExpiresAt: state.ExpiresAt})
	return resp.User, nil
}

// Verify asks the backend who the held token belongs to.
func (m *Manager) Verify(ctx context.Context) (*domain.User, error) {
	token, err := m.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var resp struct {
		User *domain.User `json:"user"`
	}
	if err := transport.DoJSON(ctx, m.client, transport.Request{
		Method: http.MethodGet,
		Path:   "/auth/verify",
		Header: header,
	}, &resp); err != nil {
		return nil, fmt.Errorf("verify failed: %w", err)
	}

	m.mu.Lock()
	m.user = resp.User
	m.mu.Unlock()
	return resp.User, nil
}

// Logout drops the session locally. The backend keeps no session state to revoke.
func (m *Manager) Logout() error {
	m.mu.Lock()
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	m.mu.Unlock()

	if err := m.clear(); err != nil {
		return err
	}
	m.log.Info().Str("user_id", userID).Msg("Logged out")
	m.emit(events.LoggedOut, &events.SessionData{Kind: events.LoggedOut, UserID: userID})
	return nil
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// store persists resp unless the session was cleared after generation was read.
func (m *Manager) store(resp authResponse, generation uint64) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if m.currentGeneration() != generation {
		return errSessionEnded
	}

	if err := m.storage.Set(AccessTokenKey, resp.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if resp.RefreshToken != "" {
		if err := m.storage.Set(RefreshTokenKey, resp.RefreshToken); err != nil {
			return fmt.Errorf("failed to persist refresh token: %w", err)
		}
	} else if err := m.storage.Remove(RefreshTokenKey); err != nil {
		return fmt.Errorf("failed to drop stale refresh token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = newTokenState(resp.AccessToken, resp.RefreshToken)
	m.state = StateValid
	if resp.User != nil {
		m.user = resp.User
	}
	return nil
}

// clear drops credentials in memory first so no caller sees a half-cleared session.
func (m *Manager) clear() error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.generation++
	m.tokens = TokenState{}
	m.state = StateUnauthenticated
	m.user = nil
	m.mu.Unlock()

	var errs []error
	if err := m.storage.Remove(AccessTokenKey); err != nil {
		errs = append(errs, err)
	}
	if err := m.storage.Remove(RefreshTokenKey); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func (m *Manager) expire(reason string) {
	if err := m.clear(); err != nil {
		m.log.Error().Err(err).Msg("Failed to clear expired session")
	}
	m.emit(events.SessionExpired, &events.SessionExpiredData{Reason: reason})
}

func (m *Manager) emit(eventType events.EventType, data events.EventData) {
	if m.events == nil {
		return
	}
	m.events.Emit(eventType, moduleName, data)
}

func newTokenState(access, refresh string) TokenState {
	state := TokenState{AccessToken: access, RefreshToken: refresh}
	if exp, ok := DecodeExpiry(access); ok {
		state.ExpiresAt = exp.Unix()
	}
	return state
}
