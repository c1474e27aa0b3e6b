package cache

import "time"

// TTL per data class.
const (
	TTLCatalog       = 300 * time.Second  // full currency metadata list
	TTLSymbols       = 3600 * time.Second // lightweight all-symbols view
	TTLTopSymbols    = 3600 * time.Second // top-N symbols by rank
	TTLSnapshotsLive = 60 * time.Second   // snapshots polled by live charts
	TTLSnapshots     = 300 * time.Second  // snapshots for balance/price widgets
	TTLHistory       = 300 * time.Second  // downsampled day-range history
	TTLWindow        = 3600 * time.Second // rolling chart windows

	// StaleTTL keeps last-good copies around long after the live entry expired.
	StaleTTL = 24 * time.Hour
)

// LastGoodKey is the shadow key holding the last successfully computed value.
func LastGoodKey(key string) string {
	return key + ":last_good"
}
