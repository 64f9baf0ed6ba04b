package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftmart/fulfillment-backend/api/routes"
	"github.com/craftmart/fulfillment-backend/internal/inventory"
	"github.com/craftmart/fulfillment-backend/internal/ledger"
	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/internal/payments"
	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/internal/shipping/delhivery"
	"github.com/craftmart/fulfillment-backend/internal/shipping/shiprocket"
	carrierwebhook "github.com/craftmart/fulfillment-backend/internal/webhooks/carrier"
	paymentwebhook "github.com/craftmart/fulfillment-backend/internal/webhooks/payment"
	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/metrics"
	"github.com/craftmart/fulfillment-backend/pkg/migrate"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/craftmart/fulfillment-backend/pkg/redis"
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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	registerer := prometheus.DefaultRegisterer
	webhookMetrics := metrics.NewWebhookMetrics(registerer)
	carrierMetrics := metrics.NewCarrierMetrics(registerer)

	outboxSvc, err := outbox.NewService(outbox.NewRepository())
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	inventorySvc, err := inventory.NewService(dbClient, inventory.NewRepository(dbClient.DB()), ledgerSvc, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	carrierRegistry, err := shipping.NewRegistry(cfg.Carriers.Default,
		shiprocket.New(cfg.Carriers.Shiprocket, logg),
		delhivery.New(cfg.Carriers.Delhivery, logg),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build carrier registry", err)
		os.Exit(1)
	}

	shippingRepo := shipping.NewRepository(dbClient.DB())
	orchestrator, err := shipping.NewOrchestrator(cfg.Carriers, carrierRegistry, shippingRepo, dbClient, outboxSvc, carrierMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment orchestrator", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(dbClient, orders.NewRepository(dbClient.DB()), inventorySvc, orchestrator, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(dbClient, payments.NewRepository(dbClient.DB()), ordersSvc, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	paymentWebhookSvc, err := paymentwebhook.NewService(reconciler, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
		os.Exit(1)
	}
	paymentGuard, err := idempotency.NewGuard(redisClient, "payments", cfg.PaymentWebhook.DedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook guard", err)
		os.Exit(1)
	}

	carrierWebhookSvc, err := carrierwebhook.NewService(shippingRepo, ordersSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier webhook service", err)
		os.Exit(1)
	}
	carrierGuard, err := idempotency.NewGuard(redisClient, "carriers", cfg.CarrierWebhook.DedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			inventorySvc, ledgerSvc, ordersSvc,
			paymentWebhookSvc, paymentGuard,
			carrierWebhookSvc, carrierGuard,
			webhookMetrics,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		timeout, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeout); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
