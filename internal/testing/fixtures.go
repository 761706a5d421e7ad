package testing

import (
	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// NewStockFixtures returns a set of test stocks for use in tests
func NewStockFixtures() []domain.Stock {
	return []domain.Stock{
		{
			Ticker:        "AAPL",
			Name:          "Apple Inc.",
			Sector:        "Technology",
			Price:         189.84,
			Change:        1.12,
			ChangePercent: 0.59,
			Volume:        48210000,
		},
		{
			Ticker:        "MSFT",
			Name:          "Microsoft Corporation",
			Sector:        "Technology",
			Price:         411.22,
			Change:        -2.05,
			ChangePercent: -0.5,
			Volume:        19870000,
		},
		{
			Ticker:        "JNJ",
			Name:          "Johnson & Johnson",
			Sector:        "Healthcare",
			Price:         156.3,
			Change:        0.4,
			ChangePercent: 0.26,
			Volume:        6100000,
		},
	}
}

// NewStrategyFixtures returns a pair of catalog strategies
func NewStrategyFixtures() []domain.Strategy {
	return []domain.Strategy{
		{
			ID:          "sma_crossover",
			Name:        "SMA Crossover",
			Description: "Buy when the fast average crosses above the slow one",
			Type:        "trend",
			Parameters:  map[string]interface{}{"fast": float64(20), "slow": float64(50)},
		},
		{
			ID:          "rsi_reversion",
			Name:        "RSI Mean Reversion",
			Description: "Fade oversold and overbought readings",
			Type:        "mean_reversion",
			Parameters:  map[string]interface{}{"period": float64(14)},
		},
	}
}

// NewPortfolioFixture returns a small portfolio for userID
func NewPortfolioFixture(userID string) domain.Portfolio {
	return domain.Portfolio{
		UserID: userID,
		Holdings: []domain.PortfolioHolding{
			{Ticker: "AAPL", Quantity: 10, AverageCost: 150, CurrentPrice: 189.84, MarketValue: 1898.4, UnrealizedPL: 398.4},
		},
		Cash:       500,
		TotalValue: 2398.4,
	}
}

// NewWatchlistFixture returns a watchlist for userID holding tickers
func NewWatchlistFixture(userID string, tickers ...string) domain.Watchlist {
	items := make([]domain.WatchlistItem, 0, len(tickers))
	for _, ticker := range tickers {
		items = append(items, domain.WatchlistItem{UserID: userID, Ticker: ticker})
	}
	return domain.Watchlist{UserID: userID, Items: items}
}
