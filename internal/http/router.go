package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	"github.com/zuhaib446/nayab-gemstone/pkg/metrics"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	CartTTL            time.Duration
}

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Payment  *PaymentHandler
}

// NewRouter assembles the storefront API.
func NewRouter(cfg RouterConfig, hs Handlers, resolver auth.Resolver, m *metrics.ServerMetrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(auth.Middleware(resolver, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", hs.Products.List)
		r.Get("/products/{id}", hs.Products.Get)
		r.Get("/categories", hs.Products.Categories)
		r.Get("/auth/me", Me)

		r.Group(func(r chi.Router) {
			r.Use(CartSessionMiddleware(cfg.CartTTL))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", hs.Cart.GetCart)
				r.Delete("/", hs.Cart.ClearCart)
				r.Post("/items", hs.Cart.AddItem)
				r.Put("/items/{product_id}", hs.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", hs.Cart.RemoveItem)
			})

			r.With(auth.RequireUser).Post("/orders", hs.Orders.PlaceOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/orders", hs.Orders.ListOrders)
			r.Get("/orders/{order_id}", hs.Orders.GetOrder)
			r.Post("/payment/create-intent", hs.Payment.CreateIntent)
		})

		r.With(auth.RequireAdmin).Put("/admin/orders/{order_id}", hs.Orders.UpdateOrder)
	})

	return otelhttp.NewHandler(r, "storefront")
}
