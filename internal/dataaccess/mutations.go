package dataaccess

import (
	"context"
	"net/http"
	"net/url"

	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/session"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

// AddToWatchlist watches ticker for userID and drops cached watchlists.
func (f *Facade) AddToWatchlist(ctx context.Context, userID, ticker string) error {
	return f.changeWatchlist(ctx, "/watchlist/add", userID, ticker)
}

// RemoveFromWatchlist unwatches ticker for userID and drops cached watchlists.
func (f *Facade) RemoveFromWatchlist(ctx context.Context, userID, ticker string) error {
	return f.changeWatchlist(ctx, "/watchlist/remove", userID, ticker)
}

func (f *Facade) changeWatchlist(ctx context.Context, path, userID, ticker string) error {
	change := domain.WatchlistChange{UserID: userID, Ticker: normalizeTicker(ticker)}
	if change.UserID == "" {
		return domain.NewValidationError("user_id", "required")
	}
	if change.Ticker == "" {
		return domain.NewValidationError("ticker", "required")
	}

	if err := f.send(ctx, http.MethodPost, path, change, nil); err != nil {
		return err
	}
	f.Invalidate(path, PrefixWatchlist)
	return nil
}

// RecordTransaction books a buy or sell and drops cached portfolios.
func (f *Facade) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	tx.Ticker = normalizeTicker(tx.Ticker)
	switch {
	case tx.UserID == "":
		return domain.NewValidationError("user_id", "required")
	case tx.Ticker == "":
		return domain.NewValidationError("ticker", "required")
	case tx.Side != "buy" && tx.Side != "sell":
		return domain.NewValidationError("side", "must be buy or sell")
	case tx.Quantity <= 0:
		return domain.NewValidationError("quantity", "must be positive")
	case tx.Price < 0:
		return domain.NewValidationError("price", "must not be negative")
	}

	if err := f.send(ctx, http.MethodPost, "/portfolio/transaction", tx, nil); err != nil {
		return err
	}
	f.Invalidate("/portfolio/transaction", PrefixPortfolio)
	return nil
}

// CreateStrategy adds a user strategy and drops the cached catalog and dashboard.
func (f *Facade) CreateStrategy(ctx context.Context, s domain.Strategy) (*domain.Strategy, error) {
	if s.Name == "" {
		return nil, domain.NewValidationError("name", "required")
	}

	var created domain.Strategy
	if err := f.send(ctx, http.MethodPost, "/strategies", s, &created); err != nil {
		return nil, err
	}
	f.Invalidate("/strategies", KeyStrategies, KeyDashboard)
	return &created, nil
}

// UpdateStrategy replaces strategy id and drops the cached catalog and dashboard.
func (f *Facade) UpdateStrategy(ctx context.Context, id string, s domain.Strategy) (*domain.Strategy, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "required")
	}
	if s.Name == "" {
		return nil, domain.NewValidationError("name", "required")
	}
	s.ID = id

	var updated domain.Strategy
	if err := f.send(ctx, http.MethodPut, "/strategies/"+url.PathEscape(id), s, &updated); err != nil {
		return nil, err
	}
	f.Invalidate("/strategies/"+id, KeyStrategies, KeyDashboard)
	return &updated, nil
}

// RunBacktest runs a backtest server side. Results are not cached.
func (f *Facade) RunBacktest(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	req.Ticker = normalizeTicker(req.Ticker)
	if req.Ticker == "" {
		return nil, domain.NewValidationError("ticker", "required")
	}
	if req.Strategy == "" {
		return nil, domain.NewValidationError("strategy", "required")
	}
	if req.InitialCapital < 0 {
		return nil, domain.NewValidationError("initial_capital", "must not be negative")
	}

	var result domain.BacktestResult
	if err := transport.DoJSON(ctx, f.client, transport.Request{
		Method: http.MethodPost,
		Path:   "/backtest",
		Body:   req,
		Header: transport.BearerHeader(ctx, f.session),
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login starts a session. Cached personal data from a previous user is dropped.
func (f *Facade) Login(ctx context.Context, creds session.Credentials) (*domain.User, error) {
	user, err := f.session.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	f.Invalidate("login", userPrefixes...)
	return user, nil
}

// Register creates an account and starts a session for it.
func (f *Facade) Register(ctx context.Context, reg session.Registration) (*domain.User, error) {
	user, err := f.session.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	f.Invalidate("register", userPrefixes...)
	return user, nil
}

// Logout ends the session and drops cached personal data.
func (f *Facade) Logout() error {
	err := f.session.Logout()
	f.Invalidate("logout", userPrefixes...)
	return err
}

// Session reports the session state.
func (f *Facade) Session() session.Status {
	return f.session.Status()
}

// ForgetUserData drops cached personal data, e.g. after the session expired.
func (f *Facade) ForgetUserData(reason string) int {
	return f.Invalidate(reason, userPrefixes...)
}
