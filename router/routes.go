package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/telepay/handler"
	"github.com/mstgnz/telepay/infra/middle"
	"github.com/mstgnz/telepay/infra/response"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options wires handlers and cross-cutting services into the API router.
// Journal, Indexer and Limiter may be nil.
type Options struct {
	Payments    *handler.PaymentHandler
	Health      *handler.HealthHandler
	Journal     middle.CallJournal
	Indexer     middle.CallIndexer
	Limiter     *middle.RateLimiter
	APIKey      string
	IPWhitelist []string
}

// New builds the public API router
func New(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300, // Preflight cache time (second)
	}))
	r.Use(middle.RequestValidationMiddleware())
	if opts.Limiter != nil {
		r.Use(middle.RateLimitMiddleware(opts.Limiter))
	}
	r.Use(middle.CallLoggingMiddleware(opts.Journal, opts.Indexer))

	// Health check endpoint (no auth required)
	r.Get("/health", opts.Health.CheckHealth)

	// Webhook routes for payment notifications (no auth required)
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middle.IPWhitelistMiddleware(opts.IPWhitelist))
		r.Post("/payment", opts.Payments.HandleWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(middle.AuthMiddleware(opts.APIKey))
		Routes(r, opts.Payments)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})

	return otelhttp.NewHandler(r, "telepay")
}

// Routes registers the authenticated payment routes
func Routes(r chi.Router, payments *handler.PaymentHandler) {
	r.Post("/auth", payments.Auth)
	r.Post("/checkout-url", payments.CheckoutURL)
	r.Get("/query-order/{id}", payments.QueryOrder)
	r.Get("/notifications/{id}", payments.ListNotifications)
}

// NewDebug builds the router served on the debug listener.
// Every /debug route requires apiKey since /debug/sign signs with the merchant key.
func NewDebug(debug *handler.DebugHandler, apiKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestValidationMiddleware())

	r.Route("/debug", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(apiKey))
		r.Post("/sign", debug.Sign)
		r.Post("/verify", debug.Verify)
		r.Get("/config", debug.Config)
	})

	return r
}
