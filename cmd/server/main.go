// Package main runs the dashboard server: JSON widgets, the live chart
// WebSocket stream, deposits, health, metrics and status.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/api"
	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/config"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/market"
	"coin-dashboard/internal/storage"
	chstore "coin-dashboard/internal/storage/clickhouse"
	"coin-dashboard/internal/storage/memory"
	"coin-dashboard/internal/storage/migrations"
	pgstore "coin-dashboard/internal/storage/postgres"
	redisstore "coin-dashboard/internal/storage/redis"
	"coin-dashboard/internal/wallet"
)

// purgeInterval is how often the in-process cache drops expired entries.
const purgeInterval = 5 * time.Minute

// Server holds the wired components of the dashboard service.
type Server struct {
	cfg     *config.Config
	stores  *allStores
	handler http.Handler
	logger  *logrus.Entry
	started time.Time
}

// allStores holds storage implementations chosen by configuration.
type allStores struct {
	cache        cache.Backend
	wallets      storage.WalletStore
	transactions storage.TransactionStore
	archive      storage.SnapshotArchive
	relational   string
}

func main() {
	envFile := os.Getenv("ENV_FILE")
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (config values as defaults)
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	redisURL := flag.String("redis-url", cfg.RedisURL, "Redis URL for the shared cache (empty = in-process cache)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string for the snapshot archive (optional)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory wallet storage instead of PostgreSQL")
	streamInterval := flag.Duration("stream-interval", cfg.StreamInterval, "Live chart push interval")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", cfg.LogFormat, "Log format (text, json)")

	flag.Parse()

	cfg.HTTPAddr = *httpAddr
	cfg.RedisURL = *redisURL
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickHouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	cfg.StreamInterval = *streamInterval
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	cfg.Normalize()

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("server")

	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := newServer(cfg, stores, logger)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Info("Shutdown complete")
}

// createStores connects the cache, relational and archive stores.
func createStores(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (*allStores, func(), error) {
	stores := &allStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Cache
	if cfg.RedisURL != "" {
		rc, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		stores.cache = rc
	} else {
		mc := memory.NewCacheStore()
		go purgeLoop(ctx, mc)
		stores.cache = mc
	}

	// Wallets and transactions
	if cfg.UseMemory {
		ws := memory.NewWalletStore()
		stores.wallets = ws
		stores.transactions = memory.NewTransactionStore(memory.WithWallets(ws))
		stores.relational = "memory"
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.WithField("applied", applied).Info("Postgres migrations done")
		stores.wallets = pgstore.NewWalletStore(pool)
		stores.transactions = pgstore.NewTransactionStore(pool)
		stores.relational = "postgres"
	}

	// Snapshot archive (optional)
	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		stores.archive = chstore.NewSnapshotArchiveStore(conn)
	}

	logger.WithFields(logrus.Fields{
		"cache":      stores.cache.Name(),
		"relational": stores.relational,
		"archive":    stores.archive != nil,
	}).Info("Stores ready")

	return stores, cleanup, nil
}

func purgeLoop(ctx context.Context, store *memory.CacheStore) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Purge()
		}
	}
}

// newServer wires the upstream client, market facade, wallet service and API.
func newServer(cfg *config.Config, stores *allStores, logger *logrus.Entry) *Server {
	provider := livecoin.NewHTTPClient(cfg.UpstreamURL, cfg.UpstreamAPIKey,
		livecoin.WithTimeout(cfg.UpstreamTimeout),
		livecoin.WithMaxRetries(cfg.UpstreamRetries),
		livecoin.WithRateLimit(cfg.UpstreamRateLimit, cfg.UpstreamRateBurst),
		livecoin.WithLogger(logging.New("livecoin")),
	)

	facade := market.New(market.Options{
		Provider: provider,
		Cache:    cache.NewGateway(stores.cache, logging.New("cache")),
		Windows:  stores.cache,
		Archive:  stores.archive,
		Logger:   logging.New("market"),
	})

	wallets := wallet.NewService(wallet.Options{
		Wallets:      stores.wallets,
		Transactions: stores.transactions,
		Prices:       facade,
		Logger:       logging.New("wallet"),
	})

	s := &Server{
		cfg:     cfg,
		stores:  stores,
		logger:  logger,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/", api.NewServer(api.Options{
		Market:         facade,
		Wallets:        wallets,
		Users:          api.HeaderResolver{Holdings: wallets},
		StreamInterval: cfg.StreamInterval,
		Logger:         logging.New("api"),
	}))
	s.handler = mux

	return s
}

// Run serves HTTP until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting HTTP server on %s", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Started    time.Time `json:"started"`
	Cache      string    `json:"cache"`
	Relational string    `json:"relational"`
	Archive    bool      `json:"archive"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Started:    s.started,
		Cache:      s.stores.cache.Name(),
		Relational: s.stores.relational,
		Archive:    s.stores.archive != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
