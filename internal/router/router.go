package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
)

// ViewPrefix is where app paths are served as page descriptors.
const ViewPrefix = "/views"

// Deps groups what New wires together.
type Deps struct {
	Guard      *access.Guard
	Identities middleware.Identities

	Session  *handler.SessionHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Views    *handler.ViewHandler

	Metrics metrics.Recorder
	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// New creates a new HTTP router with all routes and middleware configured.
//
// Middleware order: Recovery -> RequestID -> Logging -> Metrics -> CORS.
func New(deps Deps, logger zerolog.Logger) http.Handler {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(rec))
	r.Use(middleware.CORS)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	})

	if deps.MetricsHandler != nil && deps.MetricsPath != "" {
		r.Method(http.MethodGet, deps.MetricsPath, deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", deps.Session.Me)
			r.Post("/login", deps.Session.Login)
			r.Post("/login/{role}", deps.Session.Login)
			r.Post("/register", deps.Session.Register)
			r.Post("/logout", deps.Session.Logout)
		})

		// The cart outlives the identity, so it is not gated.
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", deps.Cart.Get)
			r.Delete("/", deps.Cart.Clear)
			r.Post("/items", deps.Cart.AddItem)
			r.Put("/items/{id}", deps.Cart.UpdateQuantity)
			r.Delete("/items/{id}", deps.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RequireView(deps.Guard, deps.Identities, access.PathCheckout))
			r.Post("/", deps.Checkout.Enter)
			r.Get("/", deps.Checkout.Get)
			r.Delete("/", deps.Checkout.Leave)
			r.Put("/shipping", deps.Checkout.UpdateShipping)
			r.Post("/continue", deps.Checkout.Continue)
			r.Post("/back", deps.Checkout.Back)
			r.Put("/payment-method", deps.Checkout.SelectPaymentMethod)
			r.Put("/payment", deps.Checkout.UpdatePayment)
			r.Post("/place-order", deps.Checkout.PlaceOrder)
		})

		r.With(middleware.RequireView(deps.Guard, deps.Identities, access.PathOrders)).
			Get("/orders", deps.Orders.List)
		r.With(middleware.RequireView(deps.Guard, deps.Identities, access.PathOrderDetails)).
			Get("/order-details", deps.Orders.Details)
	})

	views := middleware.ViewGate(deps.Guard, deps.Identities, ViewPrefix, logger)
	r.With(views).Get(ViewPrefix, deps.Views.Page)
	r.With(views).Get(ViewPrefix+"/*", deps.Views.Page)

	return r
}
