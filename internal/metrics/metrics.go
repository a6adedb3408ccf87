package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersPlaced    prometheus.Counter
	OrdersRejected  *prometheus.CounterVec
	OrderRevenue    prometheus.Counter
	CheckoutLatency prometheus.Histogram
	StockUpdates    prometheus.Counter
	Ratings         prometheus.Counter
	Verifications   *prometheus.CounterVec
	EventsFailed    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_orders_placed_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "hive_orders_rejected_total"}, []string{"reason"})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_order_revenue_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hive_checkout_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	stock := prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_stock_updates_total"})
	ratings := prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_ratings_total"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "hive_verifications_total"}, []string{"outcome"})
	eventsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_order_events_failed_total"})

	r.MustRegister(placed, rejected, revenue, latency, stock, ratings, verifications, eventsFailed)
	return &Registry{
		reg:             r,
		OrdersPlaced:    placed,
		OrdersRejected:  rejected,
		OrderRevenue:    revenue,
		CheckoutLatency: latency,
		StockUpdates:    stock,
		Ratings:         ratings,
		Verifications:   verifications,
		EventsFailed:    eventsFailed,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
