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
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/pkg/embedded"
)

// Stocks returns the market overview. It never fails while the embedded defaults load.
func (f *Facade) Stocks(ctx context.Context) ([]domain.Stock, error) {
	stocks, err := cachedRead(f, KeyStocks, cache.TTLStocks, cache.PriorityHigh, func() ([]domain.Stock, error) {
		return f.fetchStocks(ctx)
	})
	if err != nil {
		return f.defaultStocks(err)
	}
	return stocks, nil
}

func (f *Facade) fetchStocks(ctx context.Context) ([]domain.Stock, error) {
	var list domain.StockList
	if err := f.get(ctx, "/stocks", &list); err != nil {
		return nil, fmt.Errorf("failed to fetch stocks: %w", err)
	}
	return list.Stocks, nil
}

func (f *Facade) defaultStocks(cause error) ([]domain.Stock, error) {
	stocks, err := embedded.DefaultStocks()
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	f.servedDefaults("stocks", cause)
	return stocks, nil
}

// Stock returns one ticker's quote and history for period and interval.
// When nothing can be fetched a placeholder built from the default list is returned.
func (f *Facade) Stock(ctx context.Context, ticker, period, interval string) (*domain.StockDetail, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, domain.NewValidationError("ticker", "required")
	}
	if period == "" {
		period = DefaultPeriod
	}
	if interval == "" {
		interval = DefaultInterval
	}

	key := stockKey(ticker, period, interval)
	detail, err := cachedRead(f, key, cache.TTLStockDetail, cache.PriorityMedium, func() (*domain.StockDetail, error) {
		path := withQuery("/stocks/"+url.PathEscape(ticker), url.Values{"period": {period}, "interval": {interval}})
		var d domain.StockDetail
		if err := f.get(ctx, path, &d); err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
		}
		return &d, nil
	})
	if err == nil {
		return detail, nil
	}

	stocks, derr := embedded.DefaultStocks()
	if derr == nil {
		for _, s := range stocks {
			if s.Ticker == ticker {
				f.servedDefaults(key, err)
				return &domain.StockDetail{Stock: s, Period: period, Interval: interval, History: []domain.PricePoint{}}, nil
			}
		}
	}
	return nil, err
}

// Strategies returns the strategy catalog, falling back to the built-in one.
func (f *Facade) Strategies(ctx context.Context) ([]domain.Strategy, error) {
	strategies, err := cachedRead(f, KeyStrategies, cache.TTLStrategies, cache.PriorityCritical, func() ([]domain.Strategy, error) {
		return f.fetchStrategies(ctx)
	})
	if err != nil {
		return f.defaultStrategies(err)
	}
	return strategies, nil
}

func (f *Facade) fetchStrategies(ctx context.Context) ([]domain.Strategy, error) {
	var list domain.StrategyList
	if err := f.get(ctx, "/strategies", &list); err != nil {
		return nil, fmt.Errorf("failed to fetch strategies: %w", err)
	}
	return list.Strategies, nil
}

func (f *Facade) defaultStrategies(cause error) ([]domain.Strategy, error) {
	strategies, err := embedded.DefaultStrategies()
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	f.servedDefaults("strategies", cause)
	return strategies, nil
}

// Prediction returns the model forecast for ticker under strategy. There is no safe
// default for a forecast, so failures propagate.
func (f *Facade) Prediction(ctx context.Context, ticker, strategy string, params url.Values) (*domain.Prediction, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, domain.NewValidationError("ticker", "required")
	}
	if strategy == "" {
		return nil, domain.NewValidationError("strategy", "required")
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("strategy", strategy)

	return cachedRead(f, predictionKey(ticker, strategy, params), cache.TTLPrediction, cache.PriorityMedium, func() (*domain.Prediction, error) {
		var p domain.Prediction
		if err := f.get(ctx, withQuery("/prediction/"+url.PathEscape(ticker), query), &p); err != nil {
			return nil, fmt.Errorf("failed to fetch prediction for %s: %w", ticker, err)
		}
		return &p, nil
	})
}

// Dashboard returns the landing bundle, fetching stocks and strategies in one round-trip.
// Parts that fail come from the per-resource cache or the defaults; such a bundle is
// flagged Fallback and is not cached.
func (f *Facade) Dashboard(ctx context.Context) (*domain.DashboardBundle, error) {
	if v, ok := f.cache.GetWithBackup(KeyDashboard); ok {
		if bundle, ok := v.(*domain.DashboardBundle); ok {
			return bundle, nil
		}
	}

	bundle := f.fetchDashboard(ctx)
	if !bundle.Fallback {
		f.cache.Set(KeyDashboard, bundle, cache.TTLDashboard, cache.PriorityHigh)
	}
	return bundle, nil
}

func (f *Facade) fetchDashboard(ctx context.Context) *domain.DashboardBundle {
	agg := batch.New(f.client, f.session, f.log, batch.WithEvents(f.events)).
		Add("/stocks", http.MethodGet, nil, KeyStocks).
		Add("/strategies", http.MethodGet, nil, KeyStrategies)

	bundle := &domain.DashboardBundle{GeneratedAt: f.now()}

	results, err := agg.Execute(ctx, nil)
	if err != nil {
		results = batch.Results{}
	}

	var stocks domain.StockList
	if r, ok := results[KeyStocks]; ok && r.Decode(&stocks) == nil {
		bundle.Stocks = stocks.Stocks
		f.cache.Set(KeyStocks, stocks.Stocks, cache.TTLStocks, cache.PriorityHigh)
	} else {
		bundle.Fallback = true
		bundle.Stocks = f.fallbackStocks(results[KeyStocks].Err())
	}

	var strategies domain.StrategyList
	if r, ok := results[KeyStrategies]; ok && r.Decode(&strategies) == nil {
		bundle.Strategies = strategies.Strategies
		f.cache.Set(KeyStrategies, strategies.Strategies, cache.TTLStrategies, cache.PriorityCritical)
	} else {
		bundle.Fallback = true
		bundle.Strategies = f.fallbackStrategies(results[KeyStrategies].Err())
	}

	return bundle
}

// fallbackStocks prefers any cached copy over the defaults.
func (f *Facade) fallbackStocks(cause error) []domain.Stock {
	if v, ok := f.cache.GetWithBackup(KeyStocks); ok {
		if stocks, ok := v.([]domain.Stock); ok {
			return stocks
		}
	}
	if cause == nil {
		cause = errors.New("stocks missing from dashboard response")
	}
	stocks, _ := f.defaultStocks(cause)
	return stocks
}

func (f *Facade) fallbackStrategies(cause error) []domain.Strategy {
	if v, ok := f.cache.GetWithBackup(KeyStrategies); ok {
		if strategies, ok := v.([]domain.Strategy); ok {
			return strategies
		}
	}
	if cause == nil {
		cause = errors.New("strategies missing from dashboard response")
	}
	strategies, _ := f.defaultStrategies(cause)
	return strategies
}

// RefreshVolatile re-polls market data in place. Existing entries survive a failed re-poll.
func (f *Facade) RefreshVolatile(ctx context.Context) error {
	var refreshed []string
	var errs []error

	if stocks, err := f.fetchStocks(ctx); err != nil {
		errs = append(errs, err)
	} else {
		f.cache.Set(KeyStocks, stocks, cache.TTLStocks, cache.PriorityHigh)
		refreshed = append(refreshed, KeyStocks)
	}

	if bundle := f.fetchDashboard(ctx); bundle.Fallback {
		errs = append(errs, errors.New("dashboard refresh incomplete"))
	} else {
		f.cache.Set(KeyDashboard, bundle, cache.TTLDashboard, cache.PriorityHigh)
		refreshed = append(refreshed, KeyDashboard)
	}

	if len(refreshed) > 0 {
		f.emit(events.VolatileRefreshed, &events.VolatileRefreshedData{Keys: refreshed})
	}
	return errors.Join(errs...)
}

func (f *Facade) servedDefaults(resource string, cause error) {
	f.log.Warn().Err(cause).Str("resource", resource).Msg("Serving default dataset")
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	f.emit(events.DefaultsServed, &events.DefaultsServedData{Resource: resource, Error: msg})
}
