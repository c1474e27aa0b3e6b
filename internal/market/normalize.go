package market

import (
	"strings"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
)

var hundred = decimal.NewFromInt(100)

func decimalOf(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// changePct converts the provider's day delta into the dashboard's 24h change.
func changePct(d *livecoin.Delta) decimal.Decimal {
	if d == nil || d.Day == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*d.Day).Mul(hundred)
}

func iconOf(c livecoin.Coin) string {
	if c.Webp64 != "" {
		return c.Webp64
	}
	return c.Png64
}

func toMeta(c livecoin.Coin) domain.CurrencyMeta {
	code := domain.NormalizeSymbol(c.Code)
	name := c.Name
	if name == "" {
		name = string(code)
	}
	return domain.CurrencyMeta{
		Code:    code,
		Name:    name,
		IconURL: iconOf(c),
		Rank:    c.Rank,
	}
}

// toSnapshot normalizes a coin row. Rows without a rate are not usable.
func toSnapshot(c livecoin.Coin) (domain.PriceSnapshot, bool) {
	if c.Rate == nil || strings.TrimSpace(c.Code) == "" {
		return domain.PriceSnapshot{}, false
	}
	meta := toMeta(c)
	return domain.PriceSnapshot{
		Code:         meta.Code,
		Name:         meta.Name,
		Price:        decimal.NewFromFloat(*c.Rate),
		Change24hPct: changePct(c.Delta),
		Volume:       decimalOf(c.Volume),
		MarketCapUSD: decimalOf(c.Cap),
		IconURL:      meta.IconURL,
	}, true
}

// ShortCode strips the provider's suffix after the first underscore, e.g.
// "USDT_BSC" becomes "USDT".
func ShortCode(code domain.Symbol) domain.Symbol {
	s := string(code)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	return domain.Symbol(s)
}

// orderedSymbols normalizes codes, drops empties and duplicates, and keeps
// first-seen order.
func orderedSymbols(codes []domain.Symbol) []domain.Symbol {
	seen := make(map[domain.Symbol]struct{}, len(codes))
	out := make([]domain.Symbol, 0, len(codes))
	for _, c := range codes {
		n := domain.NormalizeSymbol(string(c))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
