// Package main is the cache maintenance tool: it flushes cached market data
// by key prefix and warms the catalog.
//
// Usage:
//
//	cachectl flush [--prefix price_snapshots:]
//	cachectl warm [--top 5]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/config"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/market"
	redisstore "coin-dashboard/internal/storage/redis"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	redisURL := fs.String("redis-url", cfg.RedisURL, "Redis URL of the shared cache (required)")
	prefix := fs.String("prefix", "", "Key prefix to flush (empty = all market data)")
	top := fs.Int("top", 5, "Number of top symbols to warm")
	outputJSON := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(os.Args[2:])

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("cachectl")

	if *redisURL == "" {
		logger.Fatal("--redis-url is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down...", sig)
		cancel()
	}()

	store, err := redisstore.Open(ctx, *redisURL)
	if err != nil {
		logger.Fatalf("connect to redis: %v", err)
	}
	defer store.Close()

	provider := livecoin.NewHTTPClient(cfg.UpstreamURL, cfg.UpstreamAPIKey,
		livecoin.WithTimeout(cfg.UpstreamTimeout),
		livecoin.WithMaxRetries(cfg.UpstreamRetries),
		livecoin.WithLogger(logging.New("livecoin")),
	)
	facade := market.New(market.Options{
		Provider: provider,
		Cache:    cache.NewGateway(store, logging.New("cache")),
		Windows:  store,
		Logger:   logging.New("market"),
	})

	var result any
	switch command {
	case "flush":
		n, err := facade.Flush(ctx, *prefix)
		if err != nil {
			logger.Fatalf("flush: %v", err)
		}
		result = map[string]any{"prefix": *prefix, "removed": n}

	case "warm":
		if cfg.UpstreamAPIKey == "" {
			logger.Fatal("LIVECOIN_API_KEY is required to warm the cache")
		}
		res, err := facade.Warm(ctx, *top)
		if err != nil {
			logger.Fatalf("warm: %v", err)
		}
		result = res

	default:
		usage()
		os.Exit(2)
	}

	printResult(logger, result, *outputJSON)
}

func printResult(logger *logrus.Entry, result any, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatalf("encode result: %v", err)
		}
		return
	}
	fmt.Printf("%+v\n", result)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cachectl <flush|warm> [flags]")
	fmt.Fprintln(os.Stderr, "  flush  remove cached market data (--prefix to limit)")
	fmt.Fprintln(os.Stderr, "  warm   load the currency catalog and top symbols into the cache")
}
