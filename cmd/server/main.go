// Package main is the entrypoint for the DevPulse API server.
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

	"github.com/kiranshivaraju/devpulse/internal/ai"
	"github.com/kiranshivaraju/devpulse/internal/api"
	"github.com/kiranshivaraju/devpulse/internal/api/handler"
	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/auth"
	"github.com/kiranshivaraju/devpulse/internal/cache"
	"github.com/kiranshivaraju/devpulse/internal/config"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/metrics"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Postgres (tenancy, apps, credentials)
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to MongoDB (logs, events)
	mongoClient, err := logstore.Connect(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("mongodb disconnect failed", "error", err)
		}
	}()
	slog.Info("mongodb connected")

	logs := logstore.NewMongoStore(mongoClient, cfg.Mongo.Database)
	if err := logs.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure mongodb indexes: %w", err)
	}

	// 5. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	aiService := ai.NewService(aiProvider, cfg.AI.Timeout)
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Create stores and tenancy plumbing
	pgStore := store.NewPostgresStore(pool)
	binder := tenancy.NewBinder(pgStore)
	gate := tenancy.NewGate(pgStore)

	// 8. Build router with dependencies
	credentials := auth.NewCredentialResolver(pgStore)
	sessions := auth.NewHeaderSessionResolver(pgStore, "")

	deps := api.Dependencies{
		Auth:       mw.NewAuth(credentials, sessions, binder),
		RateLimit:  mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),
		RequestLog: mw.NewRequestLog(logs, pgStore),

		Health:  healthHandler(pgStore, logs, redisCache),
		Metrics: metrics.Handler(),

		Apps:    handler.NewApps(pgStore),
		Logs:    handler.NewLogs(logs, gate),
		GitHub:  handler.NewGitHub(pgStore, logs, aiService),
		AI:      handler.NewAI(logs, gate, aiService),
		Webhook: handler.NewWebhook(cfg.GitHub.WebhookSecret, webhook.NewDispatcher(pgStore, logs)),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks relational, document, and cache connectivity.
func healthHandler(s store.Store, l logstore.LogStore, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"logstore": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := l.Ping(r.Context()); err != nil {
			checks["logstore"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		for _, status := range checks {
			if status != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
