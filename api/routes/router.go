package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/storefront-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP edge depends on.
type RedisStore interface {
	pkgredis.Pinger
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
}

// ProofService uploads and verifies bank-transfer proofs.
type ProofService interface {
	Upload(ctx context.Context, input payments.UploadInput) (*models.PaymentProof, error)
	Verify(ctx context.Context, input payments.VerifyInput) (*payments.VerifyResult, error)
	MaxBytes() int64
}

// Params carries everything the router wires into handlers.
type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     RedisStore
	Gatherer  prometheus.Gatherer
	Orders    orders.Service
	Proofs    ProofService
	Webhooks  webhookcontrollers.PaymentGatewayService
	Inventory inventorycontrollers.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	// Keep nil interfaces nil so middleware sees a missing store.
	var (
		redisPinger pkgredis.Pinger
		idemStore   pkgredis.IdempotencyStore
		rateStore   pkgredis.RateLimiter
	)
	if p.Redis != nil {
		redisPinger, idemStore, rateStore = p.Redis, p.Redis, p.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.HTTP.RateLimitWindow, cfg.HTTP.CheckoutRateLimit)
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.HTTP.RateLimitWindow, cfg.HTTP.WebhookRateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, redisPinger, logg))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(webhookPolicy, rateStore, logg,
			middleware.FailOpen(),
			middleware.WithReject(webhookcontrollers.Reject(logg)),
		)).
			Post("/payment-gateway", webhookcontrollers.PaymentGateway(p.Webhooks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(checkoutPolicy, rateStore, logg)).
				Post("/", ordercontrollers.Create(p.Orders, logg))
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Post("/{orderId}/confirm", ordercontrollers.Confirm(p.Orders, logg))
			r.Post("/{orderId}/payment-proofs", ordercontrollers.UploadProof(p.Proofs, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(p.Orders, logg))
				r.Post("/{orderId}/ship", ordercontrollers.Ship(p.Orders, logg))
				r.Post("/{orderId}/payment-proofs/{proofId}/verify", ordercontrollers.VerifyProof(p.Proofs, logg))
				r.Get("/{orderId}/stock-check", ordercontrollers.StockCheck(p.Orders, logg))
			})
			r.Route("/inventories", func(r chi.Router) {
				r.Post("/", inventorycontrollers.Create(p.Inventory, logg))
				r.Get("/{inventoryId}", inventorycontrollers.Detail(p.Inventory, logg))
				r.Post("/{inventoryId}/adjust", inventorycontrollers.Adjust(p.Inventory, logg))
			})
		})
	})

	return r
}
