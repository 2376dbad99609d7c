package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerline/ledgerline-backend/api/controllers"
	"github.com/ledgerline/ledgerline-backend/api/middleware"
	"github.com/ledgerline/ledgerline-backend/internal/invoices"
	"github.com/ledgerline/ledgerline-backend/internal/products"
	"github.com/ledgerline/ledgerline-backend/pkg/config"
	"github.com/ledgerline/ledgerline-backend/pkg/db"
	"github.com/ledgerline/ledgerline-backend/pkg/enums"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
	"github.com/ledgerline/ledgerline-backend/pkg/metrics"
	"github.com/ledgerline/ledgerline-backend/pkg/redis"
)

// NewRouter wires every HTTP route. redisPinger and idempotencyStore may be nil
// when Redis is not configured.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisPinger redis.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	productService products.Service,
	invoiceService invoices.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.SecureHeaders(cfg.App.IsProd(), logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.App.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.App.RequestTimeout))
		}
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/invoices", func(r chi.Router) {
			r.With(
				middleware.RequireRole(logg, enums.RoleCustomer),
				middleware.PurchaseRateLimit(cfg.Invoicing.PurchaseRateLimit, logg),
				middleware.Idempotency(idempotencyStore, logg),
			).Post("/", controllers.CreateInvoice(invoiceService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleAdmin, enums.RoleManager))
				r.Get("/", controllers.ListInvoices(invoiceService, logg))
				r.Get("/{invoiceId}", controllers.GetInvoice(invoiceService, logg))
			})
		})

		r.Get("/products/{productId}/stock", controllers.ProductStock(productService, logg))
	})

	return r
}
