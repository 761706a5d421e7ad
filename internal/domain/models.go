// Package domain provides the payload types the dashboard exchanges with its backend
// and the error taxonomy of the data-access layer.
//
// The data-access layer does not interpret these payloads beyond decoding them into
// typed return values; pricing, scoring, and prediction logic all live server side.
package domain

import "time"

// Stock is one row of the market overview.
type Stock struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
}

// StockList is the envelope returned by GET /api/stocks.
type StockList struct {
	Stocks []Stock `json:"stocks"`
}

// PricePoint is a single OHLCV sample.
type PricePoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// StockDetail is returned by GET /api/stocks/:ticker.
type StockDetail struct {
	Stock
	Period   string       `json:"period,omitempty"`
	Interval string       `json:"interval,omitempty"`
	History  []PricePoint `json:"history"`
}

// Strategy describes a trading strategy from the catalog.
type Strategy struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Type        string                 `json:"type,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	OwnerID     string                 `json:"owner_id,omitempty"`
}

// StrategyList is the envelope returned by GET /api/strategies.
type StrategyList struct {
	Strategies []Strategy `json:"strategies"`
}

// Prediction is a model forecast for one ticker under one strategy.
type Prediction struct {
	Ticker     string       `json:"ticker"`
	Strategy   string       `json:"strategy"`
	Signal     string       `json:"signal"` // "buy", "sell", "hold"
	Confidence float64      `json:"confidence"`
	Target     float64      `json:"target_price,omitempty"`
	Horizon    string       `json:"horizon,omitempty"`
	Forecast   []PricePoint `json:"forecast,omitempty"`
}

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Ticker         string                 `json:"ticker"`
	Strategy       string                 `json:"strategy"`
	StartDate      string                 `json:"start_date,omitempty"`
	EndDate        string                 `json:"end_date,omitempty"`
	InitialCapital float64                `json:"initial_capital,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
}

// BacktestResult summarises a backtest run.
type BacktestResult struct {
	Ticker      string       `json:"ticker"`
	Strategy    string       `json:"strategy"`
	TotalReturn float64      `json:"total_return"`
	SharpeRatio float64      `json:"sharpe_ratio"`
	MaxDrawdown float64      `json:"max_drawdown"`
	Trades      int          `json:"trades"`
	Equity      []PricePoint `json:"equity_curve,omitempty"`
}

// PortfolioHolding is one position in a user's portfolio.
type PortfolioHolding struct {
	ID           string  `json:"id,omitempty"`
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// Portfolio is returned by GET /api/portfolio/:userId.
type Portfolio struct {
	UserID     string             `json:"user_id"`
	Holdings   []PortfolioHolding `json:"holdings"`
	Cash       float64            `json:"cash"`
	TotalValue float64            `json:"total_value"`
}

// Transaction is the body of POST /api/portfolio/transaction.
type Transaction struct {
	UserID   string  `json:"user_id"`
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"` // "buy" or "sell"
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// WatchlistItem is one watched ticker.
type WatchlistItem struct {
	ID      string    `json:"id,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Ticker  string    `json:"ticker"`
	AddedAt time.Time `json:"added_at,omitempty"`
}

// Watchlist is returned by GET /api/watchlist/:userId.
type Watchlist struct {
	UserID string          `json:"user_id"`
	Items  []WatchlistItem `json:"items"`
}

// WatchlistChange is the body of POST /api/watchlist/add and /remove.
type WatchlistChange struct {
	UserID string `json:"user_id"`
	Ticker string `json:"ticker"`
}

// Preferences holds per-user dashboard settings.
type Preferences struct {
	UserID   string                 `json:"user_id"`
	Theme    string                 `json:"theme,omitempty"`
	Currency string                 `json:"currency,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// Notification is a user-facing alert.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationList is returned by GET /api/notifications/:userId.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

// DashboardBundle is the combined payload the landing page renders.
type DashboardBundle struct {
	Stocks      []Stock    `json:"stocks"`
	Strategies  []Strategy `json:"strategies"`
	GeneratedAt time.Time  `json:"generated_at"`
	Fallback    bool       `json:"fallback,omitempty"`
}

// UserData is the batched personal bundle. Errors lists the parts that failed,
// keyed by part name ("portfolio", "watchlist", "preferences", "notifications").
type UserData struct {
	Portfolio     *Portfolio        `json:"portfolio,omitempty"`
	Watchlist     *Watchlist        `json:"watchlist,omitempty"`
	Preferences   *Preferences      `json:"preferences,omitempty"`
	Notifications []Notification    `json:"notifications,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// User is the authenticated principal.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}
