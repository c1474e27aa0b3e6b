package domain

import (
	"sort"
	"strings"
)

// Symbol is the provider-assigned code of a tradable asset, e.g. "BTC".
type Symbol string

// NormalizeSymbol trims and upper-cases a raw code.
func NormalizeSymbol(code string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(code)))
}

// SortedSymbols returns the deduplicated, upper-cased and sorted form of codes.
// Empty codes are dropped.
func SortedSymbols(codes []Symbol) []Symbol {
	seen := make(map[Symbol]struct{}, len(codes))
	out := make([]Symbol, 0, len(codes))
	for _, c := range codes {
		n := NormalizeSymbol(string(c))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// JoinSymbols joins symbols with sep.
func JoinSymbols(codes []Symbol, sep string) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, sep)
}

// CurrencyMeta describes a tradable asset as listed by the provider.
type CurrencyMeta struct {
	Code    Symbol `json:"code"`
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Rank    int    `json:"rank"`
}
