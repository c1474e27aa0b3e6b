package domain

import "github.com/shopspring/decimal"

// Series sizes.
const (
	// HistoryMaxPoints bounds a downsampled history series.
	HistoryMaxPoints = 7
	// WindowCapacity is the fixed length of a rolling chart window.
	WindowCapacity = 60
)

// HistoryPoint is one labelled sample of a downsampled series.
type HistoryPoint struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// HistoricalSeries is a day-range price history for one symbol,
// at most HistoryMaxPoints long.
type HistoricalSeries struct {
	Code   Symbol         `json:"code"`
	Points []HistoryPoint `json:"points"`
}

// Empty reports whether the series has no points.
func (s HistoricalSeries) Empty() bool { return len(s.Points) == 0 }

// Labels returns point labels in order.
func (s HistoricalSeries) Labels() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Label
	}
	return out
}

// ShiftWindow returns prior normalized to capacity (left-padded with zeros or
// trimmed from the front), with its first element evicted and v appended.
// prior is not modified.
func ShiftWindow(prior []decimal.Decimal, v decimal.Decimal, capacity int) []decimal.Decimal {
	next := make([]decimal.Decimal, capacity)
	// next[0:capacity-1] holds the newest capacity-1 samples of prior.
	keep := capacity - 1
	src := prior
	if len(src) > keep {
		src = src[len(src)-keep:]
	}
	pad := keep - len(src)
	for i := 0; i < pad; i++ {
		next[i] = decimal.Zero
	}
	copy(next[pad:keep], src)
	next[keep] = v
	return next
}
