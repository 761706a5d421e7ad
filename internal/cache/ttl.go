package cache

import "time"

// TTL constants for the dashboard resources.
// Volatile market data expires quickly; near-static reference data is kept longer.
const (
	// Market data (changes every tick)
	TTLStocks      = 60 * time.Second // Market overview list
	TTLStockDetail = 60 * time.Second // Per-ticker quote + history for one period/interval
	TTLDashboard   = 60 * time.Second // Landing page bundle (stocks + strategies)

	// Model output (recomputed server side every few minutes)
	TTLPrediction = 5 * time.Minute

	// User-scoped data (invalidated explicitly on mutation)
	TTLUserData = 2 * time.Minute // Portfolio, watchlist, preferences, notifications

	// Reference data (rarely changes)
	TTLStrategies = 30 * time.Minute // Strategy catalog

	// BackupReseedTTL is the primary TTL used when a backup entry is promoted.
	BackupReseedTTL = 30 * time.Second

	// backupTTLFactor multiplies the primary TTL for backup entries.
	backupTTLFactor = 3
)
