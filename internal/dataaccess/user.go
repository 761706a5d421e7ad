package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aristath/sentinel-dashboard/internal/batch"
	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// Portfolio returns userID's holdings. Requires a session; errors propagate.
func (f *Facade) Portfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	if err := f.requireSession(); err != nil {
		return nil, err
	}

	return cachedRead(f, userKey(PrefixPortfolio, userID), cache.TTLUserData, cache.PriorityMedium, func() (*domain.Portfolio, error) {
		var p domain.Portfolio
		if err := f.getPersonal(ctx, "/portfolio/"+url.PathEscape(userID), &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

// Watchlist returns userID's watched tickers. Requires a session; errors propagate.
func (f *Facade) Watchlist(ctx context.Context, userID string) (*domain.Watchlist, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	if err := f.requireSession(); err != nil {
		return nil, err
	}

	return cachedRead(f, userKey(PrefixWatchlist, userID), cache.TTLUserData, cache.PriorityMedium, func() (*domain.Watchlist, error) {
		var w domain.Watchlist
		if err := f.getPersonal(ctx, "/watchlist/"+url.PathEscape(userID), &w); err != nil {
			return nil, err
		}
		return &w, nil
	})
}

func (f *Facade) getPersonal(ctx context.Context, path string, out interface{}) error {
	header, err := f.authHeader(ctx)
	if err != nil {
		return err
	}
	if err := f.doGet(ctx, path, header, out); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	return nil
}

// userPart is one resource of the batched user bundle.
type userPart struct {
	name   string
	path   string
	decode func(batch.Result) (interface{}, error)
	assign func(*domain.UserData, interface{})
}

func userParts(userID string) []userPart {
	id := url.PathEscape(userID)
	return []userPart{
		{
			name: PrefixPortfolio,
			path: "/portfolio/" + id,
			decode: func(r batch.Result) (interface{}, error) {
				var p domain.Portfolio
				return &p, r.Decode(&p)
			},
			assign: func(d *domain.UserData, v interface{}) { d.Portfolio = v.(*domain.Portfolio) },
		},
		{
			name: PrefixWatchlist,
			path: "/watchlist/" + id,
			decode: func(r batch.Result) (interface{}, error) {
				var w domain.Watchlist
				return &w, r.Decode(&w)
			},
			assign: func(d *domain.UserData, v interface{}) { d.Watchlist = v.(*domain.Watchlist) },
		},
		{
			name: PrefixPreferences,
			path: "/preferences/" + id,
			decode: func(r batch.Result) (interface{}, error) {
				var p domain.Preferences
				return &p, r.Decode(&p)
			},
			assign: func(d *domain.UserData, v interface{}) { d.Preferences = v.(*domain.Preferences) },
		},
		{
			name: PrefixNotifications,
			path: "/notifications/" + id,
			decode: func(r batch.Result) (interface{}, error) {
				var n domain.NotificationList
				if err := r.Decode(&n); err != nil {
					return nil, err
				}
				return n.Notifications, nil
			},
			assign: func(d *domain.UserData, v interface{}) { d.Notifications = v.([]domain.Notification) },
		},
	}
}

// UserData fetches every personal resource for userID in one aggregate call. Parts
// already cached are not refetched. Failed parts are reported in UserData.Errors; if
// every fetched part was rejected as unauthorized the call fails with
// domain.ErrAuthRequired.
func (f *Facade) UserData(ctx context.Context, userID string) (*domain.UserData, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	if err := f.requireSession(); err != nil {
		return nil, err
	}

	data := &domain.UserData{}
	agg := batch.New(f.client, f.session, f.log, batch.WithEvents(f.events))
	pending := make(map[string]userPart)

	for _, part := range userParts(userID) {
		if v, ok := f.cache.Get(userKey(part.name, userID)); ok {
			part.assign(data, v)
			continue
		}
		agg.Add(part.path, http.MethodGet, nil, part.name)
		pending[part.name] = part
	}

	if len(pending) == 0 {
		return data, nil
	}

	header, err := f.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	results, err := agg.Execute(ctx, header)
	if err != nil {
		return nil, err
	}

	unauthorized := 0
	for name, part := range pending {
		r := results[name]
		v, err := part.decode(r)
		if err != nil {
			if data.Errors == nil {
				data.Errors = make(map[string]string)
			}
			data.Errors[name] = err.Error()
			if errors.Is(err, domain.ErrAuthExpired) {
				unauthorized++
			}
			continue
		}
		part.assign(data, v)
		f.cache.Set(userKey(name, userID), v, cache.TTLUserData, cache.PriorityMedium)
	}

	if unauthorized == len(pending) {
		return nil, domain.ErrAuthRequired
	}
	if len(data.Errors) > 0 {
		f.log.Warn().
			Str("user_id", userID).
			Int("failed", len(data.Errors)).
			Msg("User data partially loaded")
	}
	return data, nil
}
