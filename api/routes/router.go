package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	inventorycontrollers "github.com/craftmart/fulfillment-backend/api/controllers/inventory"
	ordercontrollers "github.com/craftmart/fulfillment-backend/api/controllers/orders"
	webhookcontrollers "github.com/craftmart/fulfillment-backend/api/controllers/webhooks"
	"github.com/craftmart/fulfillment-backend/api/handlers"
	"github.com/craftmart/fulfillment-backend/api/middleware"
	"github.com/craftmart/fulfillment-backend/internal/inventory"
	"github.com/craftmart/fulfillment-backend/internal/ledger"
	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/metrics"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/craftmart/fulfillment-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	inventoryService inventory.Service,
	ledgerService ledger.Service,
	ordersService orders.Service,
	paymentWebhookService webhookcontrollers.Service,
	paymentWebhookGuard *idempotency.Guard,
	carrierWebhookService webhookcontrollers.Service,
	carrierWebhookGuard *idempotency.Guard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.Live())
		r.Get("/ready", handlers.Ready(dbP, redisP, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.Handler(
			"payments", cfg.PaymentWebhook.SigningSecret,
			paymentWebhookGuard, paymentWebhookService, webhookMetrics, logg,
		))
		r.Post("/carriers", webhookcontrollers.Handler(
			"carriers", cfg.CarrierWebhook.SigningSecret,
			carrierWebhookGuard, carrierWebhookService, webhookMetrics, logg,
		))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/{orderID}", ordercontrollers.Get(ordersService, logg))
			r.Get("/{orderID}/timeline", ordercontrollers.Timeline(ordersService, logg))

			r.Post("/{orderID}/start-processing", ordercontrollers.StartProcessing(ordersService, logg))
			r.Post("/{orderID}/pack", ordercontrollers.MarkPacked(ordersService, logg))
			r.Post("/{orderID}/ready-for-pickup", ordercontrollers.MarkReadyForPickup(ordersService, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Post("/{orderID}/return", ordercontrollers.RequestReturn(ordersService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleSeller, enums.ActorRoleAdmin))
				r.Post("/{orderID}/return/approve", ordercontrollers.ApproveReturn(ordersService, logg))
				r.Post("/{orderID}/return/reject", ordercontrollers.RejectReturn(ordersService, logg))
				r.Post("/{orderID}/return/received", ordercontrollers.MarkReturnReceived(ordersService, logg))
				r.Post("/{orderID}/quality-check", ordercontrollers.CompleteQualityCheck(ordersService, logg))
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorRoleSeller, enums.ActorRoleAdmin)).
				Post("/adjust", inventorycontrollers.Adjust(inventoryService, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleAdmin)).
				Post("/transfer", inventorycontrollers.Transfer(inventoryService, logg))
			r.Get("/warehouses/{warehouseID}/products/{productID}", inventorycontrollers.WarehouseStock(inventoryService, logg))
			r.Get("/products/{productID}", inventorycontrollers.ProductStock(inventoryService, logg))
			r.Get("/products/{productID}/ledger", inventorycontrollers.Ledger(ledgerService, logg))
		})
	})

	return r
}
