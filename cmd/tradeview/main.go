package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tradeview/internal/cache"
	"tradeview/internal/config"
	"tradeview/internal/ledger"
	"tradeview/internal/provider"
	"tradeview/internal/scheduler"
	"tradeview/internal/server"
	"tradeview/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] tradeview starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Open the trade ledger
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[FATAL] create database dir: %v", err)
		}
	}
	store, err := ledger.NewSQLiteStore(cfg.Database.SQLitePath, cfg.Account.StartingCash)
	if err != nil {
		log.Fatalf("[FATAL] open ledger: %v", err)
	}
	defer store.Close()

	// Market data: primary with daily fallback behind one TTL cache
	timeout := time.Duration(cfg.Provider.TimeoutSec) * time.Second
	primary := provider.NewYahooFetcher(cfg.Provider.Proxy, timeout)
	fallback := provider.NewStooqFetcher(cfg.Provider.Proxy, timeout)
	market := provider.NewAdapter(primary, fallback, cache.New(), cfg.Provider.Mode)
	log.Printf("[INFO] data sources: %s, fallback %s (mode %s)", primary.Name(), fallback.Name(), market.Mode())

	// Session and live refresh
	sess := session.New(market, store, cfg)
	refresh := scheduler.New(sess.Interval(), func() { sess.RenderDashboard() })
	if sess.Live() {
		if err := refresh.Start(); err != nil {
			log.Fatalf("[FATAL] start refresh: %v", err)
		}
	}
	defer refresh.Stop()

	// Serve until SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(cfg.Server.Addr, sess, refresh)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[FATAL] server: %v", err)
	}
	log.Println("[INFO] tradeview stopped")
}
