package livecoin

import "context"

// Provider is the market-data API used by the market package.
type Provider interface {
	// ListCoins returns coins from /coins/list.
	ListCoins(ctx context.Context, req ListRequest) ([]Coin, error)

	// CoinHistory returns the rate history of one coin from /coins/single/history.
	CoinHistory(ctx context.Context, req HistoryRequest) (*History, error)
}

// Request defaults.
const (
	EndpointCoinsList   = "/coins/list"
	EndpointCoinHistory = "/coins/single/history"
	DefaultCurrency     = "USD"
	DefaultCatalogLimit = 50
	DefaultCatalogSort  = "rank"
	DefaultCatalogOrder = "ascending"
)

// ListRequest is the body of /coins/list.
type ListRequest struct {
	Currency string   `json:"currency"`
	Sort     string   `json:"sort"`
	Order    string   `json:"order"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	Meta     bool     `json:"meta"`
	Codes    []string `json:"codes,omitempty"`
}

// HistoryRequest is the body of /coins/single/history. Start and End are
// unix milliseconds.
type HistoryRequest struct {
	Currency string `json:"currency"`
	Code     string `json:"code"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Meta     bool   `json:"meta"`
}

// Coin is one row of /coins/list. Optional fields are pointers.
type Coin struct {
	Code   string   `json:"code"`
	Name   string   `json:"name,omitempty"`
	Rank   int      `json:"rank,omitempty"`
	Rate   *float64 `json:"rate"`
	Volume *float64 `json:"volume,omitempty"`
	Cap    *float64 `json:"cap,omitempty"`
	Delta  *Delta   `json:"delta,omitempty"`
	Png64  string   `json:"png64,omitempty"`
	Webp64 string   `json:"webp64,omitempty"`
}

// Delta holds the provider's rate change ratios. The dashboard reports Day
// multiplied by 100 as the 24h change, so 1.02 is shown as 102.
type Delta struct {
	Hour *float64 `json:"hour,omitempty"`
	Day  *float64 `json:"day,omitempty"`
	Week *float64 `json:"week,omitempty"`
}

// History is the reply of /coins/single/history.
type History struct {
	Code    string         `json:"code,omitempty"`
	History []HistoryPoint `json:"history"`
}

// HistoryPoint is one sample. Date is unix milliseconds.
type HistoryPoint struct {
	Date int64    `json:"date"`
	Rate *float64 `json:"rate"`
}

// ListCoins implements Provider.
func (c *HTTPClient) ListCoins(ctx context.Context, req ListRequest) ([]Coin, error) {
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	var out []Coin
	if err := c.FetchJSON(ctx, EndpointCoinsList, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CoinHistory implements Provider.
func (c *HTTPClient) CoinHistory(ctx context.Context, req HistoryRequest) (*History, error) {
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	var out History
	if err := c.FetchJSON(ctx, EndpointCoinHistory, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ Provider = (*HTTPClient)(nil)
