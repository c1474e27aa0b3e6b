// Package market aggregates upstream market data for dashboard widgets:
// currency catalog, price snapshots, downsampled history and rolling chart
// windows, all behind a shared cache.
package market

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage"
)

// TopSymbolsKeyPrefix prefixes the top-N symbols cache key.
const TopSymbolsKeyPrefix = "top_symbols:"

// ChartLabelLayout formats live chart minute labels.
const ChartLabelLayout = "15:04"

// FallbackBTCPrice values BTC when no price is available.
var FallbackBTCPrice = decimal.NewFromInt(45000)

// FallbackSymbols is served when the catalog cannot be loaded at all.
var FallbackSymbols = []domain.Symbol{"BTC", "ETH", "BNB", "XRP", "ADA", "SOL"}

// Options configures a Facade.
type Options struct {
	Provider livecoin.Provider
	Cache    *cache.Gateway

	// Windows advances rolling chart windows; nil keeps them in process.
	Windows cache.WindowStore

	// Archive receives fresh snapshot batches; optional.
	Archive storage.SnapshotArchive

	Logger *logrus.Entry
	Now    func() time.Time
}

// Facade is the single entry point used by widgets.
type Facade struct {
	catalog   *Catalog
	snapshots *SnapshotFetcher
	history   *HistoryFetcher
	windows   *WindowBuffer
	gw        *cache.Gateway
	log       *logrus.Entry
	now       func() time.Time
}

// New wires the market components.
func New(opts Options) *Facade {
	log := logging.OrDefault(opts.Logger, "market")
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	f := &Facade{
		catalog:   NewCatalog(opts.Provider, opts.Cache, log.WithField("component", "catalog")),
		snapshots: NewSnapshotFetcher(opts.Provider, opts.Cache, opts.Archive, log.WithField("component", "snapshots")),
		history:   NewHistoryFetcher(opts.Provider, opts.Cache, log.WithField("component", "history")),
		windows:   NewWindowBuffer(opts.Windows, log.WithField("component", "window")),
		gw:        opts.Cache,
		log:       log,
		now:       now,
	}
	f.snapshots.now = now
	f.history.now = now
	return f
}

// Catalog returns the currency catalog.
func (f *Facade) Catalog() *Catalog { return f.catalog }

// History returns the history fetcher.
func (f *Facade) History() *HistoryFetcher { return f.history }

// TopSymbols returns the n best-ranked symbols. When neither cache nor
// upstream can supply a catalog, FallbackSymbols (cut to n) is returned.
func (f *Facade) TopSymbols(ctx context.Context, n int) (symbols []domain.Symbol) {
	if n <= 0 {
		return []domain.Symbol{}
	}
	defer f.recoverWith("top_symbols", func() { symbols = fallbackTop(n) })

	key := fmt.Sprintf("%s%d", TopSymbolsKeyPrefix, n)
	out, err := cache.GetOrCompute(ctx, f.gw, key, cache.TTLTopSymbols, func(ctx context.Context) ([]domain.Symbol, error) {
		metas := f.catalog.ListCurrencies(ctx)
		if len(metas) == 0 {
			return nil, errEmptyResponse
		}
		if len(metas) > n {
			metas = metas[:n]
		}
		top := make([]domain.Symbol, len(metas))
		for i, m := range metas {
			top[i] = m.Code
		}
		return top, nil
	})
	if err != nil {
		f.log.WithError(err).Warn("top symbols unavailable, serving fallback")
		observability.RecordFallback("top_symbols")
		return fallbackTop(n)
	}
	return out
}

func fallbackTop(n int) []domain.Symbol {
	if n > len(FallbackSymbols) {
		n = len(FallbackSymbols)
	}
	out := make([]domain.Symbol, n)
	copy(out, FallbackSymbols[:n])
	return out
}

// PricesFor returns current snapshots for codes.
func (f *Facade) PricesFor(ctx context.Context, codes []domain.Symbol) (out map[domain.Symbol]domain.SnapshotResult) {
	defer f.recoverWith("prices", func() {
		out = make(map[domain.Symbol]domain.SnapshotResult, len(codes))
		for _, c := range codes {
			out[c] = domain.Unavailable(domain.NormalizeSymbol(string(c)))
		}
	})
	return f.snapshots.FetchSnapshots(ctx, codes, cache.TTLSnapshots)
}

// TimeLabels returns n minute labels ending at now.
func TimeLabels(now time.Time, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = now.Add(time.Duration(i-n+1) * time.Minute).Format(ChartLabelLayout)
	}
	return out
}

// ChartDataset advances the rolling window of symbols with their live prices
// and returns the chart payload. Wallet-based charts get their own window.
func (f *Facade) ChartDataset(ctx context.Context, symbols []domain.Symbol, walletBased bool) (view domain.ChartView) {
	now := f.now()
	syms := orderedSymbols(symbols)
	defer f.recoverWith("chart", func() { view = MinimalChart(now, syms) })

	view.Chart.Labels = TimeLabels(now, domain.WindowCapacity)
	view.Chart.Datasets = []domain.Dataset{}
	if len(syms) == 0 {
		return view
	}

	results := f.snapshots.FetchSnapshots(ctx, syms, cache.TTLSnapshotsLive)
	if ctx.Err() != nil {
		// The caller is gone; its unavailable prices must not enter a shared window.
		return MinimalChart(now, syms)
	}
	latest := make(map[domain.Symbol]decimal.Decimal, len(syms))
	for _, s := range syms {
		latest[s] = results[s].PriceOr(decimal.Zero)
	}

	key := AllChartKey
	if walletBased {
		key = WalletChartKey(syms)
	}
	windows := f.windows.Advance(ctx, key, syms, latest)

	for i, s := range syms {
		values := windows[s]
		prices := make([]float64, len(values))
		for j, v := range values {
			prices[j] = v.InexactFloat64()
		}
		color := domain.PaletteColor(i)
		view.Chart.Datasets = append(view.Chart.Datasets, domain.Dataset{
			Label:           string(s),
			Prices:          prices,
			BorderColor:     color.Border,
			BackgroundColor: color.Background,
		})
	}
	return view
}

// MinimalChart is the degraded chart: one label, one zero per symbol and
// ChartErrorMessage.
func MinimalChart(now time.Time, symbols []domain.Symbol) domain.ChartView {
	msg := ChartErrorMessage
	datasets := make([]domain.Dataset, len(symbols))
	for i, s := range symbols {
		datasets[i] = domain.Dataset{
			Label:  string(domain.NormalizeSymbol(string(s))),
			Prices: []float64{0},
		}
	}
	return domain.ChartView{
		Chart: domain.ChartData{
			Labels:   []string{now.Format(ChartLabelLayout)},
			Datasets: datasets,
		},
		ErrorMessage: &msg,
	}
}

// HistoryChart renders the day-range history of code as a single "Price"
// dataset. An unavailable history renders as an empty chart.
func (f *Facade) HistoryChart(ctx context.Context, code domain.Symbol, days int) (view domain.ChartView) {
	defer f.recoverWith("history_chart", func() {
		view = domain.ChartView{Chart: domain.ChartData{Labels: []string{}, Datasets: []domain.Dataset{}}}
	})

	series := f.history.SeriesOrEmpty(ctx, code, days)
	view.Chart.Labels = series.Labels()
	view.Chart.Datasets = []domain.Dataset{}
	if series.Empty() {
		return view
	}
	view.Chart.Datasets = append(view.Chart.Datasets, domain.Dataset{
		Label:           "Price",
		Prices:          seriesValues(series),
		BorderColor:     domain.HistoryColor.Border,
		BackgroundColor: domain.HistoryColor.Background,
	})
	return view
}

// MarketTrends summarizes 24h change across the catalog. Codes are shortened
// to the part before '_'; later rows win on collisions.
func (f *Facade) MarketTrends(ctx context.Context) (trends domain.MarketTrends) {
	defer f.recoverWith("trends", func() { trends = domain.MarketTrends{Coins: []domain.TrendEntry{}} })

	rows := f.catalog.Rows(ctx)
	trends.Coins = []domain.TrendEntry{}
	if len(rows) == 0 {
		return trends
	}

	index := make(map[domain.Symbol]int, len(rows))
	for _, r := range rows {
		code := ShortCode(r.Code)
		entry := domain.TrendEntry{Code: code, Price: r.Price, ChangePct: r.Change24hPct}
		if i, ok := index[code]; ok {
			trends.Coins[i] = entry
			continue
		}
		index[code] = len(trends.Coins)
		trends.Coins = append(trends.Coins, entry)
	}

	sum := decimal.Zero
	for _, c := range trends.Coins {
		sum = sum.Add(c.ChangePct)
	}
	trends.AveragePct = sum.Div(decimal.NewFromInt(int64(len(trends.Coins))))
	updated := f.now()
	trends.LastUpdated = &updated
	return trends
}

// NewsHeadlines is how many coins the news widget reports on.
const NewsHeadlines = 2

// NewsUnavailable is the single headline served when the catalog is empty.
const NewsUnavailable = "Market updates unavailable"

// MarketNews turns the 24h change of the top-ranked coins into headlines like
// "Bitcoin up 2.00% in last 24h".
func (f *Facade) MarketNews(ctx context.Context) (news domain.MarketNews) {
	now := f.now()
	unavailable := func() {
		news = domain.MarketNews{Items: []domain.NewsItem{{Description: NewsUnavailable, CreatedAt: now}}}
	}
	defer f.recoverWith("news", unavailable)

	rows := f.catalog.Rows(ctx)
	if len(rows) == 0 {
		unavailable()
		return news
	}
	if len(rows) > NewsHeadlines {
		rows = rows[:NewsHeadlines]
	}

	news.Items = make([]domain.NewsItem, 0, len(rows))
	for _, r := range rows {
		news.Items = append(news.Items, domain.NewsItem{Description: headline(r), CreatedAt: now})
	}
	return news
}

func headline(s domain.PriceSnapshot) string {
	name := s.Name
	if name == "" {
		name = string(s.Code)
	}
	direction := "up"
	if s.Change24hPct.IsNegative() {
		direction = "down"
	}
	return fmt.Sprintf("%s %s %s%% in last 24h", name, direction, s.Change24hPct.Abs().StringFixed(2))
}

// WalletBalance values holdings in USD and BTC. The BTC change is measured
// against the last point of BTC's 1-day history. Empty holdings are treated
// as {BTC: 0}.
func (f *Facade) WalletBalance(ctx context.Context, holdings map[domain.Symbol]decimal.Decimal) (bal domain.WalletBalance) {
	now := f.now()
	defer f.recoverWith("balance", func() {
		bal = domain.WalletBalance{PrimaryCurrency: "BTC", LastUpdated: now}
	})

	normalized := make(map[domain.Symbol]decimal.Decimal, len(holdings))
	for code, amount := range holdings {
		c := domain.NormalizeSymbol(string(code))
		if c == "" {
			continue
		}
		normalized[c] = normalized[c].Add(amount)
	}
	if len(normalized) == 0 {
		normalized["BTC"] = decimal.Zero
	}

	codes := make([]domain.Symbol, 0, len(normalized)+1)
	for c := range normalized {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	primary := codes[0]

	prices := f.snapshots.FetchSnapshots(ctx, append(codes, "BTC"), cache.TTLSnapshots)
	anyAvailable := false
	for _, c := range codes {
		if prices[c].Available {
			anyAvailable = true
			break
		}
	}
	if !anyAvailable {
		f.log.WithField("codes", domain.JoinSymbols(codes, ",")).Warn("no prices for wallet holdings")
		return domain.WalletBalance{PrimaryCurrency: primary, LastUpdated: now}
	}

	total := decimal.Zero
	for _, c := range codes {
		total = total.Add(normalized[c].Mul(prices[c].PriceOr(decimal.Zero)))
	}

	btcPrice := prices["BTC"].PriceOr(FallbackBTCPrice)
	if btcPrice.IsZero() {
		btcPrice = FallbackBTCPrice
	}

	change := decimal.Zero
	if prev, ok := lastValue(f.history.SeriesOrEmpty(ctx, "BTC", 1)); ok && !prev.IsZero() {
		change = btcPrice.Sub(prev).Div(prev).Mul(hundred).Round(2)
	}

	icon := f.catalog.IconMap(ctx)[primary]
	if icon == "" && prices[primary].Available {
		icon = prices[primary].Snapshot.IconURL
	}

	return domain.WalletBalance{
		Available:       true,
		TotalUSD:        total,
		TotalBTC:        total.Div(btcPrice),
		ChangePct:       change,
		PrimaryCurrency: primary,
		PrimaryIcon:     icon,
		LastUpdated:     now,
	}
}

// Greeting returns the header salutation for userName at now.
func (f *Facade) Greeting(ctx context.Context, now time.Time, userName string) (g domain.Greeting) {
	g = domain.Greeting{Salutation: Salutation(now), UserName: userName}
	defer f.recoverWith("greeting", func() { g.SymbolCount = 0 })

	g.SymbolCount = len(f.catalog.ListSymbols(ctx))
	return g
}

// Salutation picks the time-of-day greeting.
func Salutation(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// recoverWith turns a panic in a widget method into fallback().
func (f *Facade) recoverWith(widget string, fallback func()) {
	if r := recover(); r != nil {
		f.log.WithFields(logrus.Fields{
			"widget": widget,
			"panic":  r,
			"stack":  string(debug.Stack()),
		}).Error("widget failed, serving minimal state")
		observability.RecordFallback(widget)
		fallback()
	}
}
