// Package dataaccess is the only surface the dashboard UI talks to. It serves reads
// cache-first with static fallbacks, guards personal resources behind the session,
// and invalidates the cache after successful mutations.
package dataaccess

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/batch"
	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/session"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

const moduleName = "dataaccess"

// SessionManager is the part of session.Manager the facade depends on.
type SessionManager interface {
	transport.TokenSource
	Authenticated() bool
	Login(ctx context.Context, creds session.Credentials) (*domain.User, error)
	Register(ctx context.Context, reg session.Registration) (*domain.User, error)
	Logout() error
	Status() session.Status
}

// Config wires a Facade.
type Config struct {
	Client  transport.Doer
	Cache   *cache.Store
	Session SessionManager
	// Coalescer, if set, carries public GET reads so concurrent misses share one round-trip.
	Coalescer *batch.Coalescer
	Events    events.Emitter
	Log       zerolog.Logger
	Now       func() time.Time
}

// Facade is safe for concurrent use.
type Facade struct {
	client    transport.Doer
	cache     *cache.Store
	session   SessionManager
	coalescer *batch.Coalescer
	events    events.Emitter
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a Facade.
func New(cfg Config) *Facade {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Facade{
		client:    cfg.Client,
		cache:     cfg.Cache,
		session:   cfg.Session,
		coalescer: cfg.Coalescer,
		events:    cfg.Events,
		log:       cfg.Log.With().Str("component", moduleName).Logger(),
		now:       cfg.Now,
	}
}

// Cache exposes the underlying store for diagnostics.
func (f *Facade) Cache() *cache.Store {
	return f.cache
}

// cachedRead returns the cached T for key or fetches, stores and returns it.
// The backup copy is consulted before going to the network.
func cachedRead[T any](f *Facade, key string, ttl time.Duration, priority cache.Priority, fetch func() (T, error)) (T, error) {
	if v, ok := f.cache.GetWithBackup(key); ok {
		if typed, ok := v.(T); ok {
			f.log.Debug().Str("key", key).Msg("Cache hit")
			return typed, nil
		}
		// A foreign type under our key is treated as a miss.
		f.cache.Delete(key)
	}

	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	f.cache.Set(key, value, ttl, priority)
	return value, nil
}

// get performs a public GET, through the coalescer when one is configured.
func (f *Facade) get(ctx context.Context, path string, out interface{}) error {
	if f.coalescer != nil {
		r, err := f.coalescer.Submit(ctx, path, http.MethodGet, nil)
		if err != nil {
			return err
		}
		return r.Decode(out)
	}
	return f.doGet(ctx, path, transport.BearerHeader(ctx, f.session), out)
}

func (f *Facade) doGet(ctx context.Context, path string, header http.Header, out interface{}) error {
	return transport.DoJSON(ctx, f.client, transport.Request{
		Method: http.MethodGet,
		Path:   path,
		Header: header,
	}, out)
}

// authHeader returns bearer headers for a personal resource, or domain.ErrAuthRequired
// when there is no session to speak for.
func (f *Facade) authHeader(ctx context.Context) (http.Header, error) {
	if f.session == nil || !f.session.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	token, err := f.session.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrAuthRequired
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header, nil
}

// requireSession fails fast, before any I/O, when no session is held.
func (f *Facade) requireSession() error {
	if f.session == nil || !f.session.Authenticated() {
		return domain.ErrAuthRequired
	}
	return nil
}

// send performs an authenticated mutation and decodes the reply into out (may be nil).
func (f *Facade) send(ctx context.Context, method, path string, body, out interface{}) error {
	header, err := f.authHeader(ctx)
	if err != nil {
		return err
	}
	if err := transport.DoJSON(ctx, f.client, transport.Request{
		Method: method,
		Path:   path,
		Body:   body,
		Header: header,
	}, out); err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return nil
}

// Invalidate drops every cache entry under each prefix and returns the count removed.
func (f *Facade) Invalidate(reason string, prefixes ...string) int {
	removed := 0
	for _, prefix := range prefixes {
		removed += f.cache.Clear(prefix)
	}

	f.log.Debug().
		Strs("prefixes", prefixes).
		Int("removed", removed).
		Str("reason", reason).
		Msg("Cache invalidated")
	f.emit(events.CacheInvalidated, &events.CacheInvalidatedData{Prefixes: prefixes, Removed: removed, Reason: reason})
	return removed
}

func (f *Facade) emit(eventType events.EventType, data events.EventData) {
	if f.events == nil {
		return
	}
	f.events.Emit(eventType, moduleName, data)
}
