package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/subremind/backend/internal/handler"
	appMiddleware "github.com/subremind/backend/internal/middleware"
	"github.com/subremind/backend/internal/repository"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	a, err := wireApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed")
		return err
	}
	defer a.Close()

	if err := repository.RunMigrations(ctx, a.db); err != nil {
		log.WithError(err).Error("migration error")
		return err
	}
	log.Info("database connected & migrated")

	if err := a.auth.SeedAdmin(ctx); err != nil {
		log.WithError(err).Error("admin seed error")
		return err
	}

	a.scheduler.Start(ctx)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      a.router(ctx),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), sweepDrainTimeout)
	defer cancelDrain()
	select {
	case <-a.scheduler.Stop().Done():
	case <-drainCtx.Done():
		log.Warn("sweep still running at shutdown")
	}
	return nil
}

// sweepDrainTimeout bounds how long shutdown waits for a running sweep.
const sweepDrainTimeout = 2 * time.Minute

func (a *app) router(ctx context.Context) http.Handler {
	checks := map[string]handler.Pinger{"database": a.db}
	if a.telegram != nil {
		checks["telegram"] = a.telegram
	}

	authHandler := handler.NewAuthHandler(a.auth)
	userHandler := handler.NewUserHandler(a.auth)
	subHandler := handler.NewSubscriptionHandler(a.subscriptions)
	healthHandler := handler.NewHealthHandler(checks)
	adminHandler := handler.NewAdminHandler(a.stats, a.sweepRepo, a.scheduler)
	telegramHandler := handler.NewTelegramHandler(
		a.cfg.TelegramWebhookSecret,
		a.linking,
		a.transport,
		appMiddleware.NewRateLimiter(ctx, 0.5, 10), // per chat
		a.cfg.DispatchTimeout,
		a.log,
	)

	r := chi.NewRouter()

	r.Use(appMiddleware.Recovery(a.log))
	r.Use(appMiddleware.Logger(a.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 20 req/sec per IP, burst of 40
	r.Use(appMiddleware.NewRateLimiter(ctx, 20, 40).Middleware())

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	if a.cfg.TelegramWebhookSecret != "" {
		r.Post("/api/telegram/webhook", telegramHandler.Webhook)
	} else {
		a.log.Warn("TELEGRAM_WEBHOOK_SECRET not set, telegram webhook disabled")
	}

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx))
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/register", authHandler.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(a.auth))

		r.Get("/api/auth/me", authHandler.Me)
		r.Delete("/api/auth/link", authHandler.Unlink)

		r.Get("/api/subscriptions", subHandler.List)
		r.Post("/api/subscriptions", subHandler.Create)
		r.Get("/api/subscriptions/{id}", subHandler.Get)
		r.Put("/api/subscriptions/{id}", subHandler.Update)
		r.Delete("/api/subscriptions/{id}", subHandler.Delete)
		r.Post("/api/subscriptions/{id}/paid", subHandler.MarkPaid)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/stats", adminHandler.GetStats)
			r.Get("/api/admin/sweeps", adminHandler.ListSweeps)
			r.Post("/api/admin/sweeps/{trigger}", adminHandler.RunSweep)
			r.Get("/api/users", userHandler.List)
			r.Post("/api/users", userHandler.Create)
			r.Get("/api/users/{id}", userHandler.Get)
			r.Delete("/api/users/{id}", userHandler.Delete)
			r.Delete("/api/users/{id}/link", userHandler.Unlink)
		})
	})

	return r
}
