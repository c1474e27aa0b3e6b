// Package stub provides an in-memory livecoin.Provider for tests.
package stub

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coin-dashboard/internal/livecoin"
)

// Provider implements livecoin.Provider from fixed data.
// Setting ListErr or HistoryErr makes the matching call fail.
type Provider struct {
	mu sync.Mutex

	Coins      []livecoin.Coin
	Histories  map[string]*livecoin.History
	ListErr    error
	HistoryErr error

	listCalls    int
	historyCalls int
	lastList     livecoin.ListRequest
	lastHistory  livecoin.HistoryRequest
}

// NewProvider creates a stub serving coins.
func NewProvider(coins ...livecoin.Coin) *Provider {
	return &Provider{
		Coins:     coins,
		Histories: make(map[string]*livecoin.History),
	}
}

// ListCoins returns coins filtered by req.Codes (when set), sorted by rank
// and cut to req.Limit.
func (p *Provider) ListCoins(_ context.Context, req livecoin.ListRequest) ([]livecoin.Coin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listCalls++
	p.lastList = req
	if p.ListErr != nil {
		return nil, p.ListErr
	}

	var want map[string]bool
	if len(req.Codes) > 0 {
		want = make(map[string]bool, len(req.Codes))
		for _, c := range req.Codes {
			want[strings.ToUpper(c)] = true
		}
	}

	out := make([]livecoin.Coin, 0, len(p.Coins))
	for _, c := range p.Coins {
		if want != nil && !want[strings.ToUpper(c.Code)] {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	if req.Offset > 0 {
		if req.Offset >= len(out) {
			return []livecoin.Coin{}, nil
		}
		out = out[req.Offset:]
	}
	if req.Limit > 0 && req.Limit < len(out) {
		out = out[:req.Limit]
	}
	return out, nil
}

// CoinHistory returns the history registered for req.Code.
func (p *Provider) CoinHistory(_ context.Context, req livecoin.HistoryRequest) (*livecoin.History, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.historyCalls++
	p.lastHistory = req
	if p.HistoryErr != nil {
		return nil, p.HistoryErr
	}

	h, ok := p.Histories[strings.ToUpper(req.Code)]
	if !ok {
		return &livecoin.History{Code: req.Code}, nil
	}
	return h, nil
}

// SetListErr sets ListErr under the lock.
func (p *Provider) SetListErr(err error) {
	p.mu.Lock()
	p.ListErr = err
	p.mu.Unlock()
}

// SetHistoryErr sets HistoryErr under the lock.
func (p *Provider) SetHistoryErr(err error) {
	p.mu.Lock()
	p.HistoryErr = err
	p.mu.Unlock()
}

// ListCalls returns the number of ListCoins calls.
func (p *Provider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

// HistoryCalls returns the number of CoinHistory calls.
func (p *Provider) HistoryCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.historyCalls
}

// LastList returns the most recent ListCoins request.
func (p *Provider) LastList() livecoin.ListRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastList
}

// LastHistory returns the most recent CoinHistory request.
func (p *Provider) LastHistory() livecoin.HistoryRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHistory
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Coin builds a coin row with rate and day delta.
func Coin(code string, rank int, rate, deltaDay float64) livecoin.Coin {
	return livecoin.Coin{
		Code:   code,
		Name:   code,
		Rank:   rank,
		Rate:   Float(rate),
		Volume: Float(rate * 1000),
		Cap:    Float(rate * 1e6),
		Delta:  &livecoin.Delta{Day: Float(deltaDay)},
		Png64:  "https://lcw.nyc3.cdn.digitaloceanspaces.com/production/currencies/64/" + strings.ToLower(code) + ".png",
		Webp64: "https://lcw.nyc3.cdn.digitaloceanspaces.com/production/currencies/64/" + strings.ToLower(code) + ".webp",
	}
}

var _ livecoin.Provider = (*Provider)(nil)
