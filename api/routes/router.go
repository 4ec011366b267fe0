package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vendorpay-backend/api/controllers"
	"github.com/angelmondragon/vendorpay-backend/api/middleware"
	"github.com/angelmondragon/vendorpay-backend/internal/auth"
	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	"github.com/angelmondragon/vendorpay-backend/internal/checkout"
	"github.com/angelmondragon/vendorpay-backend/internal/notifications"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/products"
	"github.com/angelmondragon/vendorpay-backend/internal/users"
	"github.com/angelmondragon/vendorpay-backend/pkg/auth/session"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
)

// RequestStore is the Redis surface the HTTP layer uses for idempotency and
// auth throttling. *redis.Client satisfies it.
type RequestStore interface {
	middleware.IdempotencyStore
	middleware.RateLimiter
}

// Params carries every collaborator the router mounts.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	// Readiness probes keyed by collaborator name.
	Ready map[string]controllers.Pinger

	Sessions      session.AccessSessionChecker
	Store         RequestStore
	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Notifications notifications.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.LoginRateLimitPolicy(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit)

	var limiter middleware.RateLimiter
	var idemStore middleware.IdempotencyStore
	if p.Store != nil {
		limiter = p.Store
		idemStore = p.Store
	}
	idempotent := middleware.Idempotency(idemStore, logg)
	authenticated := middleware.Auth(cfg.JWT, p.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.Ready, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg), idempotent).Post("/register", controllers.AuthRegister(p.Register, p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/me", controllers.UsersMe(p.Users, logg))
		r.Get("/me/payment-address", controllers.GetPaymentAddress(p.Users, logg))
		r.Put("/me/payment-address", controllers.SavePaymentAddress(p.Users, logg))
		r.Get("/me/balance", controllers.UsersBalance(p.Users, logg))
		r.Get("/vendors", controllers.ListVendors(p.Users, logg))
		r.Post("/vendor-keys", controllers.VendorKeys(p.Users, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(p.Products, logg))
		r.Get("/newest", controllers.NewestProducts(p.Products, logg))
		r.Get("/{productId}", controllers.GetProduct(p.Products, logg))
		r.Get("/{productId}/vendor", controllers.GetProductVendor(p.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(middleware.RequireRole(logg, enums.RoleVendor))
			r.With(idempotent).Post("/", controllers.CreateProduct(p.Products, logg))
			r.Patch("/{productId}/price", controllers.UpdateProductPrice(p.Products, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(p.Products, logg))
		})
	})

	r.Post("/api/v1/cart/quote", controllers.CartQuote(p.Cart, logg))

	r.With(authenticated, idempotent).Post("/api/v1/checkout", controllers.Checkout(p.Checkout, logg))

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/{orderId}/status", controllers.OrderStatus(p.Orders, logg))
		r.Post("/track", controllers.TrackOrder(p.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.With(middleware.RequireRole(logg, enums.RoleVendor, enums.RoleAdmin)).
				Get("/vendor", controllers.VendorOrders(p.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.RoleVendor), idempotent).
				Patch("/{orderId}/items/{itemId}/status", controllers.UpdateOrderItemStatus(p.Orders, logg))
		})
	})

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", controllers.ListNotifications(p.Notifications, logg))
		r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
	})

	return r
}
