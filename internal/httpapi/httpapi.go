// Package httpapi exposes the store over JSON/HTTP. Authentication happens
// upstream; the caller's id and role arrive in request headers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/hive-store/internal/catalog"
	"github.com/safar/hive-store/internal/checkout"
	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/stats"
	"github.com/safar/hive-store/internal/store"
	"github.com/safar/hive-store/internal/verification"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	catalog      *catalog.Service
	checkout     *checkout.Service
	stats        *stats.Service
	verification *verification.Service
	orders       store.Orders
	metrics      *metrics.Registry
	log          logrus.FieldLogger
}

type Deps struct {
	Catalog      *catalog.Service
	Checkout     *checkout.Service
	Stats        *stats.Service
	Verification *verification.Service
	Orders       store.Orders
	Metrics      *metrics.Registry
	Log          logrus.FieldLogger
}

func New(d Deps) *Handler {
	return &Handler{
		catalog:      d.Catalog,
		checkout:     d.Checkout,
		stats:        d.Stats,
		verification: d.Verification,
		orders:       d.Orders,
		metrics:      d.Metrics,
		log:          d.Log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(withIdentity)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/send-verification", h.SendVerification)
		r.Post("/auth/verify-phone", h.VerifyPhone)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/products/{id}/rate", h.RateProduct)
			r.Post("/orders", h.PlaceOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireUser)
			r.Use(h.requireAdmin)
			r.Get("/stats", h.GetStats)
			r.Get("/orders", h.ListOrders)
			r.Get("/products", h.AdminProducts)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}/stock", h.SetStock)
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
}
