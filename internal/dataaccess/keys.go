package dataaccess

import (
	"net/url"
	"strings"
)

// Cache keys and the prefixes mutations invalidate.
const (
	KeyStocks     = "stocks"
	KeyStrategies = "strategies"
	KeyDashboard  = "dashboard"

	PrefixStock         = "stock_"
	PrefixPrediction    = "prediction_"
	PrefixPortfolio     = "portfolio"
	PrefixWatchlist     = "watchlist"
	PrefixPreferences   = "preferences"
	PrefixNotifications = "notifications"
)

// userPrefixes are dropped when the session owner changes.
var userPrefixes = []string{PrefixPortfolio, PrefixWatchlist, PrefixPreferences, PrefixNotifications}

// Default chart range when the caller leaves it empty.
const (
	DefaultPeriod   = "1y"
	DefaultInterval = "1d"
)

func stockKey(ticker, period, interval string) string {
	return PrefixStock + ticker + "_" + period + "_" + interval
}

func predictionKey(ticker, strategy string, params url.Values) string {
	return PrefixPrediction + ticker + "_" + strategy + "_" + params.Encode()
}

func userKey(prefix, userID string) string {
	return prefix + "_" + userID
}

// normalizeTicker upper-cases and trims a ticker symbol.
func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// withQuery appends an encoded query to path. Batch items carry the query inline.
func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
