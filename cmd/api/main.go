package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Kopi-Koubou/aura-backend/api/controllers"
	"github.com/Kopi-Koubou/aura-backend/api/routes"
	"github.com/Kopi-Koubou/aura-backend/internal/ratelimit"
	"github.com/Kopi-Koubou/aura-backend/internal/referrals"
	"github.com/Kopi-Koubou/aura-backend/internal/shares"
	"github.com/Kopi-Koubou/aura-backend/internal/subscriptions"
	"github.com/Kopi-Koubou/aura-backend/pkg/config"
	"github.com/Kopi-Koubou/aura-backend/pkg/db"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
	"github.com/Kopi-Koubou/aura-backend/pkg/migrate"
	"github.com/Kopi-Koubou/aura-backend/pkg/redis"
	"github.com/Kopi-Koubou/aura-backend/pkg/revenuecat"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := openDatabase(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	// Redis only backs the shared rate limit counters.
	var (
		counterStore ratelimit.CounterStore
		redisPinger  controllers.Pinger
	)
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		counterStore = redisClient
		redisPinger = redisClient
	}

	limiters, err := ratelimit.NewSet(cfg.RateLimit, counterStore)
	if err != nil {
		logg.Error(ctx, "failed to configure rate limits", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	growth := metrics.NewGrowth(registry)

	referralRepo := referrals.NewRepository(dbClient.DB())
	referralService, err := referrals.NewService(referrals.ServiceParams{
		Repo:              referralRepo,
		TransactionRunner: dbClient,
		RewardDays:        cfg.Referral.RewardDays,
		Logger:            logg,
		Metrics:           growth,
	})
	if err != nil {
		logg.Error(ctx, "failed to create referral service", err)
		os.Exit(1)
	}

	var subscribers subscriptions.SubscriberFetcher
	if cfg.RevenueCat.APIKey != "" {
		rcClient, err := revenuecat.NewClient(cfg.RevenueCat.APIKey,
			revenuecat.WithBaseURL(cfg.RevenueCat.BaseURL),
			revenuecat.WithEntitlement(cfg.RevenueCat.EntitlementID),
			revenuecat.WithTimeout(cfg.RevenueCat.Timeout),
		)
		if err != nil {
			logg.Error(ctx, "failed to create revenuecat client", err)
			os.Exit(1)
		}
		subscribers = rcClient
	} else {
		logg.Warn(ctx, "revenuecat api key not set, receipt validation disabled")
	}
	if cfg.RevenueCat.WebhookSecret == "" {
		logg.Warn(ctx, "revenuecat webhook secret not set, webhooks will be rejected")
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptions.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Subscribers:       subscribers,
		Logger:            logg,
		Metrics:           growth,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscription service", err)
		os.Exit(1)
	}

	shareService, err := shares.NewService(shares.ServiceParams{
		Repo:          shares.NewRepository(dbClient.DB()),
		ReferralCodes: referralRepo,
		ShareBaseURL:  cfg.Share.ShareBaseURL,
		AppOpenURL:    cfg.Share.AppOpenURL,
		FallbackURL:   cfg.Share.FallbackURL,
		Logger:        logg,
		Metrics:       growth,
	})
	if err != nil {
		logg.Error(ctx, "failed to create share service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"addr":              addr,
		"rate_limit_engine": cfg.RateLimit.Backend,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisPinger,
			registry,
			growth,
			limiters,
			referralService,
			subscriptionService,
			shareService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	if cfg.FeatureFlags.UseSQLite {
		return db.NewSQLite(ctx, cfg.DB.DSN, logg)
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
