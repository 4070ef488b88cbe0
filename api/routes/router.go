package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/printshop-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/printshop-backend/api/controllers/admin"
	ordercontrollers "github.com/angelmondragon/printshop-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/printshop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/printshop-backend/api/middleware"
	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

// Deps is everything the router hands to controllers and middleware.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Orders   orders.Service
	Webhook  webhookcontrollers.ChapaWebhookService
	Redis    *redis.Client
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Public.AllowedOrigins),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// a missing redis disables rate limiting and replay
	var (
		limiter middleware.WindowLimiter
		store   redis.IdempotencyStore
	)
	if deps.Redis != nil {
		limiter = deps.Redis
		store = deps.Redis
	}

	paymentPolicy := middleware.NewRateLimitPolicy(
		"payment",
		cfg.RateLimit.PaymentWindow,
		cfg.RateLimit.PaymentIPLimit,
		cfg.RateLimit.PaymentOrderLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/chapa", webhookcontrollers.ChapaWebhook(deps.Webhook, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(store, logg))

			r.Post("/orders", ordercontrollers.CreateDraft(deps.Orders, logg))
			r.Get("/orders/{orderId}/status", ordercontrollers.Status(deps.Orders, logg))
			r.Get("/orders/{orderId}/download", ordercontrollers.Download(deps.Orders, logg))
			r.With(middleware.RateLimit(paymentPolicy, limiter, logg)).
				Post("/payments/initiate", ordercontrollers.InitiatePayment(deps.Orders, logg))
		})

		r.Route("/admin/orders/{orderId}", func(r chi.Router) {
			r.Use(middleware.OperatorAuth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(store, logg))

			r.With(middleware.RequireRole(logg, enums.OperatorRoleOperator, enums.OperatorRoleViewer)).
				Get("/fulfillment", admincontrollers.Fulfillment(deps.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.OperatorRoleOperator))
				r.Post("/rerender", admincontrollers.Rerender(deps.Orders, logg))
				r.Post("/enrich", admincontrollers.Enrich(deps.Orders, logg))
				r.Delete("/artifact", admincontrollers.DeleteArtifact(deps.Orders, logg))
			})
		})
	})

	return r
}
