package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
)

// HistoryLabelLayout formats downsampled point labels, e.g. "Jan 2".
const HistoryLabelLayout = "Jan 2"

// DefaultHistoryDays is used when a non-positive day range is requested.
const DefaultHistoryDays = 30

// HistoryKeyPrefix prefixes every history cache key.
const HistoryKeyPrefix = "price_history:"

// HistoryCacheKey returns the cache key of a code/day-range series.
func HistoryCacheKey(code domain.Symbol, days int) string {
	return fmt.Sprintf("%s%s:%d", HistoryKeyPrefix, domain.NormalizeSymbol(string(code)), days)
}

// HistoryFetcher loads day-range price history and downsamples it.
type HistoryFetcher struct {
	provider livecoin.Provider
	gw       *cache.Gateway
	log      *logrus.Entry
	now      func() time.Time
}

// NewHistoryFetcher creates a history fetcher.
func NewHistoryFetcher(provider livecoin.Provider, gw *cache.Gateway, log *logrus.Entry) *HistoryFetcher {
	return &HistoryFetcher{
		provider: provider,
		gw:       gw,
		log:      logging.OrDefault(log, "history"),
		now:      time.Now,
	}
}

// FetchHistory returns the series for [now-days, now], at most
// domain.HistoryMaxPoints long. Failures are not cached.
func (f *HistoryFetcher) FetchHistory(ctx context.Context, code domain.Symbol, days int) (domain.HistoricalSeries, error) {
	code = domain.NormalizeSymbol(string(code))
	if days <= 0 {
		days = DefaultHistoryDays
	}

	return cache.GetOrCompute(ctx, f.gw, HistoryCacheKey(code, days), cache.TTLHistory, func(ctx context.Context) (domain.HistoricalSeries, error) {
		end := f.now()
		start := end.Add(-time.Duration(days) * 24 * time.Hour)

		h, err := f.provider.CoinHistory(ctx, livecoin.HistoryRequest{
			Currency: livecoin.DefaultCurrency,
			Code:     string(code),
			Start:    start.UnixMilli(),
			End:      end.UnixMilli(),
			Meta:     false,
		})
		if err != nil {
			return domain.HistoricalSeries{}, fmt.Errorf("coin history %s: %w", code, err)
		}
		if h == nil || len(h.History) == 0 {
			return domain.HistoricalSeries{}, fmt.Errorf("coin history %s: %w", code, ErrNoHistoryData)
		}

		return domain.HistoricalSeries{
			Code:   code,
			Points: Downsample(h.History, domain.HistoryMaxPoints),
		}, nil
	})
}

// SeriesOrEmpty is FetchHistory with every error logged and replaced by an
// empty series.
func (f *HistoryFetcher) SeriesOrEmpty(ctx context.Context, code domain.Symbol, days int) domain.HistoricalSeries {
	series, err := f.FetchHistory(ctx, code, days)
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"code": code,
			"days": days,
		}).Warn("history unavailable, rendering empty series")
		return domain.HistoricalSeries{Code: domain.NormalizeSymbol(string(code)), Points: []domain.HistoryPoint{}}
	}
	return series
}

// Downsample keeps every stride-th sample, stride = max(1, n/limit), and
// stops after limit points. Labels are UTC dates.
func Downsample(points []livecoin.HistoryPoint, limit int) []domain.HistoryPoint {
	if limit <= 0 {
		limit = domain.HistoryMaxPoints
	}
	n := len(points)
	stride := n / limit
	if stride < 1 {
		stride = 1
	}

	out := make([]domain.HistoryPoint, 0, limit)
	for i := 0; i < n && len(out) < limit; i += stride {
		p := points[i]
		out = append(out, domain.HistoryPoint{
			Label: time.UnixMilli(p.Date).UTC().Format(HistoryLabelLayout),
			Value: decimalOf(p.Rate),
		})
	}
	return out
}

// seriesValues converts a series to chart floats.
func seriesValues(s domain.HistoricalSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value.InexactFloat64()
	}
	return out
}

// lastValue returns the last point value, or zero and false when empty.
func lastValue(s domain.HistoricalSeries) (decimal.Decimal, bool) {
	if len(s.Points) == 0 {
		return decimal.Zero, false
	}
	return s.Points[len(s.Points)-1].Value, true
}
