// Package api exposes the dashboard widgets over HTTP/JSON and streams the
// live chart over WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/market"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage"
	"coin-dashboard/internal/wallet"
)

// DefaultStreamInterval is how often the chart stream pushes a frame.
const DefaultStreamInterval = 60 * time.Second

// DefaultChartSymbols is the number of top symbols charted when the client
// names none.
const DefaultChartSymbols = 5

// Options configures Server.
type Options struct {
	Market  *market.Facade
	Wallets *wallet.Service
	Users   UserResolver

	// StreamInterval between chart frames; zero means DefaultStreamInterval.
	StreamInterval time.Duration

	Logger *logrus.Entry
	Now    func() time.Time
}

// Server routes dashboard requests to the market facade and wallet service.
type Server struct {
	market   *market.Facade
	wallets  *wallet.Service
	users    UserResolver
	interval time.Duration
	log      *logrus.Entry
	now      func() time.Time
	router   *mux.Router
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{
		market:   opts.Market,
		wallets:  opts.Wallets,
		users:    opts.Users,
		interval: opts.StreamInterval,
		log:      logging.OrDefault(opts.Logger, "api"),
		now:      opts.Now,
	}
	if s.interval <= 0 {
		s.interval = DefaultStreamInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.users == nil {
		s.users = AnonymousResolver{}
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/currencies", s.handleCurrencies).Methods(http.MethodGet)
	api.HandleFunc("/symbols", s.handleSymbols).Methods(http.MethodGet)
	api.HandleFunc("/symbols/top", s.handleTopSymbols).Methods(http.MethodGet)
	api.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	api.HandleFunc("/market/rows", s.handleMarketRows).Methods(http.MethodGet)
	api.HandleFunc("/market/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/market/news", s.handleNews).Methods(http.MethodGet)
	api.HandleFunc("/charts/live", s.handleLiveChart).Methods(http.MethodGet)
	api.HandleFunc("/charts/history/{code}", s.handleHistoryChart).Methods(http.MethodGet)
	api.HandleFunc("/greeting", s.handleGreeting).Methods(http.MethodGet)

	api.HandleFunc("/wallet/balance", s.authenticated(s.handleBalance)).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.authenticated(s.handleTransactions)).Methods(http.MethodGet)
	api.HandleFunc("/deposits", s.authenticated(s.handlePlaceDeposit)).Methods(http.MethodPost)
	api.HandleFunc("/deposits/{id}/{action:confirm|cancel|fail}", s.authenticated(s.handleDepositAction)).Methods(http.MethodPost)

	r.HandleFunc("/ws/chart", s.handleChartStream).Methods(http.MethodGet)

	return r
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// unableToLoad is the only message clients see for internal failures.
const unableToLoad = "unable to load"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure maps domain errors to statuses. Anything unrecognized is
// logged and answered with a generic 500.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidDeposit), errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, wallet.ErrInvalidDeposit.Error())
	case errors.Is(err, wallet.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, wallet.ErrNotPending):
		writeError(w, http.StatusConflict, wallet.ErrNotPending.Error())
	case errors.Is(err, wallet.ErrPriceUnavailable):
		writeError(w, http.StatusServiceUnavailable, wallet.ErrPriceUnavailable.Error())
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, unableToLoad)
	}
}
