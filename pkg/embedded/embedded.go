// Package embedded provides the static datasets compiled into the binary.
// Reads that fail with no cached copy fall back to these so the dashboard never renders empty.
package embedded

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// Files contains the default datasets:
//   - defaults/stocks.json - market overview placeholder rows
//   - defaults/strategies.json - the built-in strategy catalog
//
//go:embed defaults
var Files embed.FS

// DefaultStocks returns the placeholder market overview.
func DefaultStocks() ([]domain.Stock, error) {
	var list domain.StockList
	if err := decode("defaults/stocks.json", &list); err != nil {
		return nil, err
	}
	return list.Stocks, nil
}

// DefaultStrategies returns the built-in strategy catalog.
func DefaultStrategies() ([]domain.Strategy, error) {
	var list domain.StrategyList
	if err := decode("defaults/strategies.json", &list); err != nil {
		return nil, err
	}
	return list.Strategies, nil
}

func decode(name string, v interface{}) error {
	raw, err := Files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read embedded %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse embedded %s: %w", name, err)
	}
	return nil
}
