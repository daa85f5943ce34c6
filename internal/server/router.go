// Package server assembles the HTTP routing tree.
package server

import (
	"net/http"
	"time"

	"ticketing-checkout/internal/handlers"
	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Cart      *handlers.CartHandler
	Checkout  *handlers.CheckoutHandler
	Organizer *handlers.OrganizerHandler
	Webhook   *handlers.WebhookHandler
	Cron      *handlers.CronHandler
}

type Options struct {
	ServiceName    string
	Log            zerolog.Logger
	Auth           *middleware.AuthMiddleware
	Tenants        *middleware.TenantMiddleware
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter wires every route behind the shared middleware chain and wraps
// the result in an OpenTelemetry server handler.
func NewRouter(h Handlers, o Options) http.Handler {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(o.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(o.AllowedOrigins)))
	r.Use(chimiddleware.Timeout(o.RequestTimeout))

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", h.Health.Health)

	// Machine callers authenticate with their own shared secrets.
	r.Get("/api/cron/cleanup-orders", h.Cron.CleanupOrders)
	r.Post("/api/webhooks/paymongo", h.Webhook.PayMongo)

	r.Group(func(r chi.Router) {
		if o.RateLimiter != nil {
			r.Use(middleware.RateLimit(o.RateLimiter))
		}
		r.Use(o.Auth.LoadUser)

		r.Route("/api/t/{tenant}", func(r chi.Router) {
			r.Use(o.Tenants.ResolveTenant)
			r.Get("/events/{eventID}/ticket-types", h.Cart.Quotes)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/cart", h.Cart.GetCart)
				r.Post("/cart/items", h.Cart.AddItem)
				r.Patch("/cart/items/{itemID}", h.Cart.UpdateItem)
				r.Delete("/cart/items/{itemID}", h.Cart.RemoveItem)
				r.Post("/checkout", h.Checkout.InitializeCheckout)
				r.Get("/checkout/pending", h.Checkout.GetPendingOrder)
			})
		})

		r.Route("/api/orders/{orderID}", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", h.Checkout.GetOrder)
			r.Post("/payment-session", h.Checkout.CreatePaymentSession)
			r.Put("/attendees", h.Checkout.SaveAttendees)
			r.Post("/cancel", h.Checkout.CancelOrder)
			r.Post("/verify", h.Checkout.VerifyPayment)
		})

		r.Route("/api/organizer/{tenant}", func(r chi.Router) {
			r.Use(o.Tenants.ResolveTenant)
			r.Use(o.Tenants.RequireRole(models.RoleManager))
			r.Get("/orders", h.Organizer.ListOrders)
		})
	})

	name := o.ServiceName
	if name == "" {
		name = "http.server"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
