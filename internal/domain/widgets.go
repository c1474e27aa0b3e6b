package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendEntry is one row of the market trends widget.
type TrendEntry struct {
	Code      Symbol          `json:"code"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// MarketTrends summarizes 24h movement across the catalog.
type MarketTrends struct {
	Coins       []TrendEntry    `json:"coins"`
	AveragePct  decimal.Decimal `json:"average_pct"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

// WalletBalance is the valuation of a user's holdings.
// Available is false when prices could not be resolved; numeric fields are
// then zero and should be rendered as "N/A".
type WalletBalance struct {
	Available       bool            `json:"available"`
	TotalUSD        decimal.Decimal `json:"total_usd"`
	TotalBTC        decimal.Decimal `json:"total_btc"`
	ChangePct       decimal.Decimal `json:"change_pct"`
	PrimaryCurrency Symbol          `json:"primary_currency"`
	PrimaryIcon     string          `json:"primary_icon,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// Greeting is the header widget content.
type Greeting struct {
	Salutation  string `json:"salutation"`
	UserName    string `json:"user_name"`
	SymbolCount int    `json:"symbol_count"`
}

// NewsItem is one line of the market news widget.
type NewsItem struct {
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarketNews lists short 24h movement headlines for the leading coins.
type MarketNews struct {
	Items []NewsItem `json:"items"`
}
