package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/market"
	"coin-dashboard/internal/wallet"
)

// Query limits.
const (
	maxTopSymbols      = 100
	maxHistoryDays     = 365
	maxRecentTxs       = 50
	defaultGuestName   = "Guest"
	maxDepositBodySize = 1 << 16
)

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.Catalog().ListCurrencies(r.Context()))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.Catalog().ListSymbols(r.Context()))
}

func (s *Server) handleTopSymbols(w http.ResponseWriter, r *http.Request) {
	n := intParam(r, "n", DefaultChartSymbols, 0, maxTopSymbols)
	writeJSON(w, http.StatusOK, s.market.TopSymbols(r.Context(), n))
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	codes := parseSymbols(r.URL.Query().Get("codes"))
	if len(codes) == 0 {
		writeError(w, http.StatusBadRequest, "codes required")
		return
	}
	writeJSON(w, http.StatusOK, s.market.PricesFor(r.Context(), codes))
}

func (s *Server) handleMarketRows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.Catalog().Rows(r.Context()))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.MarketTrends(r.Context()))
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.MarketNews(r.Context()))
}

func (s *Server) handleLiveChart(w http.ResponseWriter, r *http.Request) {
	symbols, walletBased := s.chartSymbols(r)
	writeJSON(w, http.StatusOK, s.market.ChartDataset(r.Context(), symbols, walletBased))
}

func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeSymbol(mux.Vars(r)["code"])
	if code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	days := intParam(r, "days", market.DefaultHistoryDays, 1, maxHistoryDays)
	writeJSON(w, http.StatusOK, s.market.HistoryChart(r.Context(), code, days))
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	name := defaultGuestName
	if user := s.optionalUser(r); user != nil {
		name = user.Name
	}
	writeJSON(w, http.StatusOK, s.market.Greeting(r.Context(), s.now(), name))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, s.market.WalletBalance(r.Context(), user.Holdings))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	limit := intParam(r, "limit", wallet.DefaultRecentLimit, 1, maxRecentTxs)

	txs, err := s.wallets.RecentTransactions(r.Context(), user.ID, limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}
	writeJSON(w, http.StatusOK, out)
}

// depositRequest accepts amount as a JSON string or number.
type depositRequest struct {
	Crypto string          `json:"crypto"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handlePlaceDeposit(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req depositRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDepositBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := s.wallets.PlaceDeposit(r.Context(), wallet.DepositRequest{
		UserID: user.ID,
		Crypto: domain.NormalizeSymbol(req.Crypto),
		Amount: req.Amount,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleDepositAction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	vars := mux.Vars(r)

	var (
		tx  *domain.Transaction
		err error
	)
	switch vars["action"] {
	case "confirm":
		tx, err = s.wallets.ConfirmDeposit(r.Context(), user.ID, vars["id"])
	case "cancel":
		tx, err = s.wallets.CancelDeposit(r.Context(), user.ID, vars["id"])
	default:
		tx, err = s.wallets.FailDeposit(r.Context(), user.ID, vars["id"])
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// transactionResponse is the wire form of a transaction.
type transactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Crypto      domain.Symbol   `json:"crypto"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	DollarValue decimal.Decimal `json:"dollar_value"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toTransactionResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Type:        tx.Type,
		Crypto:      tx.Crypto,
		Amount:      tx.Amount,
		Price:       tx.Price,
		Currency:    tx.Currency,
		DollarValue: tx.DollarValue,
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt,
	}
}

// chartSymbols resolves the symbols of a live chart request: explicit
// ?symbols=, else the caller's holdings when ?wallet=true, else the top
// DefaultChartSymbols.
func (s *Server) chartSymbols(r *http.Request) ([]domain.Symbol, bool) {
	q := r.URL.Query()
	symbols := parseSymbols(q.Get("symbols"))
	walletBased, _ := strconv.ParseBool(q.Get("wallet"))

	if len(symbols) == 0 && walletBased {
		if user := s.optionalUser(r); user != nil {
			symbols = holdingSymbols(user.Holdings)
		}
	}
	if len(symbols) == 0 {
		symbols = s.market.TopSymbols(r.Context(), DefaultChartSymbols)
	}
	return symbols, walletBased
}

func holdingSymbols(holdings map[domain.Symbol]decimal.Decimal) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(holdings))
	for code := range holdings {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// parseSymbols splits a comma-separated list, keeping first-seen order.
func parseSymbols(raw string) []domain.Symbol {
	var out []domain.Symbol
	seen := make(map[domain.Symbol]struct{})
	for _, part := range strings.Split(raw, ",") {
		sym := domain.NormalizeSymbol(part)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// intParam reads a query integer, falling back to def when absent or
// malformed and clamping to [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		v = def
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
