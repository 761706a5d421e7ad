package embedded

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStocks(t *testing.T) {
	stocks, err := DefaultStocks()
	require.NoError(t, err)
	require.NotEmpty(t, stocks)

	seen := make(map[string]bool)
	for _, s := range stocks {
		assert.NotEmpty(t, s.Ticker)
		assert.False(t, seen[s.Ticker], "duplicate ticker %s", s.Ticker)
		seen[s.Ticker] = true
	}
}

func TestDefaultStrategies(t *testing.T) {
	strategies, err := DefaultStrategies()
	require.NoError(t, err)
	require.NotEmpty(t, strategies)

	for _, s := range strategies {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Name)
	}
}
