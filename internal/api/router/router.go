package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rentfolio/propsync/internal/http/handlers"
	httpmiddleware "github.com/rentfolio/propsync/internal/http/middleware"
	"github.com/rentfolio/propsync/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Webhook      *handlers.BuildiumWebhookHandler
	AdminEvents  *handlers.AdminEventsHandler
	AdminSyncs   *handlers.AdminSyncHandler
	Payments     *handlers.PaymentsHandler
	Transactions *handlers.TransactionsHandler
	Health       *handlers.HealthHandler

	MetricsHandler http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Rate limiting for the public webhook endpoint. Zero disables it.
	WebhookRateLimit float64
	WebhookRateBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks, health, metrics.
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
			public.Get("/healthz", cfg.Health.Check)
		}
		if cfg.Webhook != nil {
			webhookRoute := public.With()
			if cfg.WebhookRateLimit > 0 {
				webhookRoute = public.With(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst))
			}
			webhookRoute.Post("/webhooks/buildium", cfg.Webhook.Handle)
			webhookRoute.Post("/webhooks/buildium/lease-transactions", cfg.Webhook.HandleLeaseTransactions)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated API: ledger reads and payment submission.
	if cfg.Transactions != nil || cfg.Payments != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.Transactions != nil {
				api.Get("/leases/{leaseID}/transactions", cfg.Transactions.ListForLease)
			}
			if cfg.Payments != nil {
				api.Post("/leases/{leaseID}/payments", cfg.Payments.Submit)
			}
		})
	}

	// Operator endpoints: dead-letter queue and sync retries.
	if cfg.AdminEvents != nil || cfg.AdminSyncs != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminEvents != nil {
				admin.Get("/webhook-events/failed", cfg.AdminEvents.ListFailed)
				admin.Post("/webhook-events/{eventID}/redeliver", cfg.AdminEvents.Redeliver)
			}
			if cfg.AdminSyncs != nil {
				admin.Get("/syncs/failed", cfg.AdminSyncs.ListFailed)
				admin.Post("/syncs/retry", cfg.AdminSyncs.RetryFailed)
			}
		})
	}

	return r
}
