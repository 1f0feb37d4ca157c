package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/dashscrape/api"
	"github.com/use-agent/dashscrape/api/handler"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/webhook"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides DASHSCRAPE_PORT)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Logging ─────────────────────────────────────────────────
	initLogger(cfg.Log)
	handler.Version = getVersion()
	slog.Info("dashscrape starting",
		"version", handler.Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	// ── 2. Scraper and browser ─────────────────────────────────────
	sc, err := newScraper(cfg)
	if err != nil {
		return err
	}
	defer sc.Close()

	// ── 3. Cache, async jobs, webhooks ─────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()
	jobs := handler.NewJobs(cfg.Server.AsyncWorkers, cfg.Webhook.JobTTL,
		webhook.NewNotifier(cfg.Webhook, slog.Default()), slog.Default())

	// ── 4. Router and server ───────────────────────────────────────
	router := api.NewRouter(ctx, cfg, api.Deps{
		Scraper:   sc,
		Cache:     cc,
		Jobs:      jobs,
		StartTime: time.Now(),
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 5. Graceful shutdown ───────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	jobs.Close()

	// sc.Close() runs via defer and kills the browsers.
	slog.Info("dashscrape stopped")
	return nil
}
