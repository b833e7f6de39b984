// Package main is the entrypoint for the photon API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/photon/internal/api"
	"github.com/kiranshivaraju/photon/internal/api/handler"
	mw "github.com/kiranshivaraju/photon/internal/api/middleware"
	"github.com/kiranshivaraju/photon/internal/cache"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/internal/observability"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/internal/scheduler"
	"github.com/kiranshivaraju/photon/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run() error {
	// 1. Load config, failing fast when invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "callback_url", cfg.CallbackURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// 6. Provider catalog and client
	registry, err := provider.NewRegistry(provider.DefaultCatalog(), cfg.Provider.DisabledModels)
	if err != nil {
		return fmt.Errorf("build model registry: %w", err)
	}
	client := provider.NewHTTPClient(cfg.Provider)
	slog.Info("provider client initialized", "base_url", cfg.Provider.BaseURL, "models", len(registry.Models()))

	// 7. Job services
	pgStore := store.NewPostgresStore(pool)
	finalizer := jobs.NewFinalizer(pgStore, redisCache, jobs.NewTokenAccountant(pgStore), registry, metrics)
	submitter := jobs.NewSubmitter(pgStore, registry, client, finalizer, cfg.Provider, cfg.CallbackURL(), metrics)
	callbacks := jobs.NewCallbackProcessor(pgStore, registry, client, finalizer, cfg.Callback, metrics)
	sweeper := jobs.NewSweeper(pgStore, registry, client, finalizer, cfg.Sweeper, cfg.Provider.PollTimeout, metrics)
	manager := jobs.NewManager(pgStore, redisCache, finalizer)

	// 8. Periodic reconciliation
	var sched *scheduler.Scheduler
	if cfg.Sweeper.Enabled {
		sched, err = scheduler.New(sweeper, redisCache, cfg.Sweeper)
		if err != nil {
			return fmt.Errorf("create sweep scheduler: %w", err)
		}
		sched.Start()
	} else {
		slog.Warn("sweep scheduler disabled; stuck jobs are only reconciled on demand")
	}

	// 9. Build router with dependencies
	router := api.NewRouter(api.Dependencies{
		Auth:         mw.NewAuth(pgStore),
		RateLimit:    mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),
		Metrics:      metrics,
		CallbackPath: cfg.Callback.Path,

		HealthHandler:    handler.NewHealthHandler(pgStore, redisCache),
		MetricsHandler:   metricsHandler,
		WebhookHandler:   handler.NewWebhookHandler(callbacks),
		SubmitHandler:    handler.NewSubmitHandler(submitter),
		GetJobHandler:    handler.NewGetJobHandler(manager),
		CancelJobHandler: handler.NewCancelJobHandler(manager),
		ReconcileHandler: handler.NewReconcileHandler(sweeper),
	})

	// 10. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
