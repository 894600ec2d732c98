package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/storefront-sync/admin"
	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/history"
	"github.com/aluiziolira/storefront-sync/scraper"
	"github.com/aluiziolira/storefront-sync/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	// A nil *admin.Client stored in the interface would not compare equal
	// to nil, so the catalog stays untyped until credentials exist.
	var catalog server.Catalog
	if cfg.AdminConfigured() {
		client := admin.NewClient(cfg.ShopDomain, cfg.ShopAccessToken, cfg.ShopAPIVersion, &http.Client{Timeout: cfg.Timeout})
		catalog = client
		slog.Info("admin api configured", slog.String("endpoint", client.Endpoint()))
	} else {
		slog.Warn("SHOP_DOMAIN or SHOP_ACCESS_TOKEN not set; upload endpoints disabled")
	}

	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			slog.Error("opening history store", slog.String("path", cfg.HistoryDB), slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Error("close history store", slog.Any("error", err))
			}
		}()
		slog.Info("run history enabled", slog.String("path", store.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(cfg, s, catalog, store),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if isTerminal(os.Stdout) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
