package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Payments *PaymentsHandler
}

type RouterConfig struct {
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Log            *logrus.Logger
	Checks         map[string]Pinger
	AdminToken     string
}

func NewRouter(h Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.Checks))
	r.Handle("/metrics", metrics.Handler(cfg.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminMiddleware(cfg.AdminToken))

			r.Put("/orders/{order_id}/status", h.Orders.UpdateStatus)
			r.Get("/payments/stale", h.Payments.StalePayments)
		})

		r.Group(func(r chi.Router) {
			r.Use(CustomerMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{item_id}", h.Cart.UpdateItem)
				r.Delete("/items/{item_id}", h.Cart.RemoveItem)
				r.Put("/shipping-address", h.Cart.SetShippingAddress)
				r.Put("/billing-address", h.Cart.SetBillingAddress)
				r.Post("/merge", h.Cart.MergeGuestCart)
			})

			r.Post("/checkout", h.Checkout.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Route("/{order_id}", func(r chi.Router) {
					r.Get("/", h.Orders.GetOrder)
					r.Post("/cancel", h.Orders.CancelOrder)
					r.Post("/payments", h.Payments.InitiatePayment)
					r.Get("/payments", h.Payments.ListPayments)
				})
			})

			r.Route("/payments/{payment_id}", func(r chi.Router) {
				r.Get("/", h.Payments.GetPayment)
				r.Post("/refund", h.Payments.RefundPayment)
			})
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		respondJSON(w, status, resp)
	}
}
