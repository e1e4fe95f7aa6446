// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-lifecycle/internal/config"
	"payment-lifecycle/internal/domain/ports/adapter"
	authAdapters "payment-lifecycle/internal/infra/adapters/auth"
	payAdapters "payment-lifecycle/internal/infra/adapters/payment"
	"payment-lifecycle/internal/infra/api"
	pg "payment-lifecycle/internal/infra/db/postgres"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
	red "payment-lifecycle/internal/infra/redis"
	"payment-lifecycle/internal/infra/sched"
	"payment-lifecycle/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted references)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister(nil)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional) ----
	var (
		locker   red.Locker
		throttle usecase.PollThrottle
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		throttle = red.NewPollThrottle(redisClient, logger)
	} else {
		logger.Warn().Msg("redis.url empty: reconciler runs unlocked and status polls are not throttled")
	}

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Provider ----
	var gateway adapter.ProviderGateway
	switch cfg.Provider.Name {
	case "noop":
		gateway = payAdapters.NewNoopPaymentGateway(30 * time.Minute)
		logger.Warn().Msg("provider: noop gateway, sessions never settle on their own")
	default:
		gateway, err = payAdapters.NewHTTPGateway(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("provider gateway")
		}
	}
	logger.Info().Str("provider", gateway.Name()).Msg("payment provider configured")

	// ---- Use cases ----
	catalog := usecase.MustDefaultTierCatalog()
	auditLog := usecase.NewAuditLog(auditRepo, logger)
	store := usecase.NewPaymentStore(payRepo, auditLog, txManager, logger)
	checker := usecase.NewStatusChecker(store, gateway, throttle, cfg.Recovery.FreshnessThreshold, cfg.Provider.Timeout, logger)
	sessions := usecase.NewPaymentSessionUseCase(catalog, store, gateway, usecase.NewULIDReferences(), cfg.Provider.Timeout, logger)
	admins := authAdapters.NewStaticAdminDirectory(cfg.Recovery.AdminIDs)
	recovery := usecase.NewRecoveryService(payRepo, store, auditLog, admins, cfg.Recovery.StalenessThreshold, logger)

	// ---- HTTP API ----
	srv := api.NewServer(api.Deps{
		Tiers:          catalog,
		Sessions:       sessions,
		Status:         checker,
		Callback:       store,
		Recovery:       recovery,
		Auth:           api.NewAuthenticator(cfg.Auth.JWTSecret),
		CallbackSecret: cfg.Provider.CallbackSecret,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Dev:            cfg.Runtime.Dev,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(payRepo, checker, store, locker, sched.ReconcilerConfig{
		Interval:    cfg.Recovery.SweepInterval,
		Freshness:   cfg.Recovery.FreshnessThreshold,
		Grace:       cfg.Recovery.ExpiryGrace,
		Concurrency: cfg.Recovery.SweepConcurrency,
	}, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
