package domain

import "github.com/shopspring/decimal"

// PriceSnapshot is a point-in-time market read for one symbol.
type PriceSnapshot struct {
	Code         Symbol          `json:"code"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Change24hPct decimal.Decimal `json:"change_24h_pct"`
	Volume       decimal.Decimal `json:"volume"`
	MarketCapUSD decimal.Decimal `json:"market_cap_usd"`
	IconURL      string          `json:"icon_url"`
}

// SnapshotResult is either an available snapshot or the unavailable marker
// for Code. Consumers check Available before reading Snapshot.
type SnapshotResult struct {
	Code      Symbol         `json:"code"`
	Available bool           `json:"available"`
	Snapshot  *PriceSnapshot `json:"snapshot,omitempty"`
}

// Available wraps a snapshot.
func Available(s PriceSnapshot) SnapshotResult {
	return SnapshotResult{Code: s.Code, Available: true, Snapshot: &s}
}

// Unavailable marks code as missing from the upstream response.
func Unavailable(code Symbol) SnapshotResult {
	return SnapshotResult{Code: code}
}

// PriceOr returns the snapshot price, or fallback when unavailable.
func (r SnapshotResult) PriceOr(fallback decimal.Decimal) decimal.Decimal {
	if !r.Available || r.Snapshot == nil {
		return fallback
	}
	return r.Snapshot.Price
}
