package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/rates"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := buildHandler(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (http.Handler, error) {
	gormDB := dbClient.DB()

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	shippingMetrics := metrics.NewShippingMetrics(registry)

	inventoryService, err := inventory.NewService(inventory.NewRepository(gormDB), dbClient, outboxService, logg)
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	lifecycle, err := orders.NewLifecycle(ordersRepo, outboxService, logg)
	if err != nil {
		return nil, err
	}

	estimator := shipping.NewEstimator(nil, cfg.Shipping, shippingMetrics, logg)
	if cfg.Shipping.RateAPIEnabled() {
		rateClient, err := rates.NewClient(cfg.Shipping.RateAPIBaseURL, cfg.Shipping.RateAPIKey, rates.WithTimeout(cfg.Shipping.RateAPITimeout))
		if err != nil {
			return nil, err
		}
		estimator = shipping.NewEstimator(rateClient, cfg.Shipping, shippingMetrics, logg)
	}

	ordersService, err := orders.NewService(
		ordersRepo,
		dbClient,
		outboxService,
		lifecycle,
		inventoryService,
		estimator,
		vouchers.NewRepository(gormDB),
		logg,
		orders.Options{PaymentExpiry: cfg.Gateway.PaymentExpiry},
	)
	if err != nil {
		return nil, err
	}

	proofStore, err := storage.NewLocal(cfg.Proofs.StorageDir)
	if err != nil {
		return nil, err
	}
	paymentsRepo := payments.NewRepository(gormDB)

	proofService, err := payments.NewProofService(payments.ProofServiceParams{
		Orders:    ordersRepo,
		Proofs:    paymentsRepo,
		Tx:        dbClient,
		Lifecycle: lifecycle,
		Inventory: inventoryService,
		Storage:   proofStore,
		Metrics:   paymentMetrics,
		Logger:    logg,
		MaxBytes:  cfg.Proofs.MaxBytes,
	})
	if err != nil {
		return nil, err
	}

	webhookService, err := payments.NewWebhookService(payments.WebhookServiceParams{
		Orders:    ordersRepo,
		Payments:  paymentsRepo,
		Tx:        dbClient,
		Lifecycle: lifecycle,
		Inventory: inventoryService,
		Outbox:    outboxService,
		Metrics:   paymentMetrics,
		Logger:    logg,
		Provider:  cfg.Gateway.Provider,
		ServerKey: cfg.Gateway.ServerKey,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Params{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Gatherer:  registry,
		Orders:    ordersService,
		Proofs:    proofService,
		Webhooks:  webhookService,
		Inventory: inventoryService,
	}), nil
}
