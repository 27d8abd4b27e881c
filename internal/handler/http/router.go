package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopease/internal/service"
	"github.com/utafrali/shopease/pkg/health"
	"github.com/utafrali/shopease/pkg/middleware"
)

// Views the API routes back. The access gate classifies these, not the API
// paths themselves.
const (
	viewCheckout      = "/checkout"
	viewMyOrders      = "/dashboard/my-orders"
	viewAdmin         = "/dashboard/admin"
	viewAdminProducts = "/dashboard/admin/manage-products"
	viewAdminOrders   = "/dashboard/admin/manage-orders"
)

// Services are the application services the router exposes.
type Services struct {
	Catalog   *service.CatalogService
	Carts     *service.CartService
	Auth      *service.AuthService
	Orders    *service.OrderService
	Dashboard *service.DashboardService
	Sessions  *service.SessionResolver
}

// RouterConfig holds the edge settings of the router.
type RouterConfig struct {
	ServiceName string
	Tokens      middleware.TokenValidator
	CORS        middleware.CORSConfig
	// LoginLimiter throttles login and registration per client IP. Nil
	// disables it.
	LoginLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Authenticate(cfg.Tokens))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	productHandler := NewProductHandler(svcs.Catalog, logger)
	cartHandler := NewCartHandler(svcs.Carts, logger)
	authHandler := NewAuthHandler(svcs.Auth, logger)
	orderHandler := NewOrderHandler(svcs.Orders, svcs.Dashboard, logger)
	navigationHandler := NewNavigationHandler(svcs.Sessions, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Session)

		// Catalog
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl("public, max-age=30"))

			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/{id}", productHandler.GetProduct)
			r.Get("/categories", productHandler.ListCategories)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl("no-store"))

			r.Get("/navigation", navigationHandler.Navigate)

			// Cart
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.AddItem)
				r.Patch("/items/{productId}", cartHandler.ChangeQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			// Auth
			r.Route("/auth", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					if cfg.LoginLimiter != nil {
						r.Use(cfg.LoginLimiter.Handler)
					}
					r.Post("/login", authHandler.Login)
					r.Post("/register", authHandler.Register)
				})
				r.Get("/me", authHandler.Me)
			})

			// Checkout and customer orders
			r.With(RequireAccess(svcs.Sessions, viewCheckout)).Post("/checkout", orderHandler.Checkout)
			r.Route("/orders", func(r chi.Router) {
				r.Use(RequireAccess(svcs.Sessions, viewMyOrders))

				r.Get("/", orderHandler.ListMyOrders)
				r.Get("/{id}", orderHandler.GetMyOrder)
			})

			// Admin console
			r.Route("/admin", func(r chi.Router) {
				r.With(RequireAccess(svcs.Sessions, viewAdmin)).Get("/stats", orderHandler.Stats)

				r.Route("/products", func(r chi.Router) {
					r.Use(RequireAccess(svcs.Sessions, viewAdminProducts))

					r.Post("/", productHandler.CreateProduct)
					r.Put("/{id}", productHandler.UpdateProduct)
					r.Delete("/{id}", productHandler.DeleteProduct)
				})

				r.Route("/orders", func(r chi.Router) {
					r.Use(RequireAccess(svcs.Sessions, viewAdminOrders))

					r.Get("/", orderHandler.ListAllOrders)
					r.Get("/{id}", orderHandler.GetAnyOrder)
					r.Patch("/{id}/status", orderHandler.UpdateStatus)
				})
			})
		})
	})

	return r
}
