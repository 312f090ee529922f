// Package metrics provides Prometheus instrumentation for the marketplace.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/event"
)

var (
	// OffersCreated counts offers posted to the marketplace.
	OffersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_offers_created_total",
		Help: "Total number of energy offers created",
	})

	// OffersResized counts offer amount/price updates.
	OffersResized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_offers_resized_total",
		Help: "Total number of offer resizes",
	})

	// OffersDeleted counts offers withdrawn by their sellers.
	OffersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_offers_deleted_total",
		Help: "Total number of offers withdrawn",
	})

	// OrdersCreated counts completed purchases, partitioned by origin
	// ("user" or "simulation").
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"origin"})

	// EnergySoldKwh accumulates the energy transferred through orders.
	EnergySoldKwh = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_energy_sold_kwh_total",
		Help: "Cumulative energy sold in kWh",
	})

	// MarketSimulations counts market simulation runs.
	MarketSimulations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_market_simulations_total",
		Help: "Total number of market simulation runs",
	})

	// AllocationFailures counts ledger allocations that failed after
	// preconditions passed. Nonzero means the engine and its callers have
	// drifted out of sync; alert on this.
	AllocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qe_allocation_failures_total",
		Help: "Ledger allocation failures after precondition checks",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qe_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is small here.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Collector translates domain events into Prometheus counters. Subscribe it
// to the event bus in main.
type Collector struct{}

// NewCollector creates a metrics event collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect implements event.Collector.
func (c *Collector) Collect(e event.Event) {
	switch e.Type {
	case event.OfferCreated:
		OffersCreated.Inc()
	case event.OfferResized:
		OffersResized.Inc()
	case event.OfferDeleted:
		OffersDeleted.Inc()
	case event.OrderCreated:
		origin := "user"
		if e.Reason == "simulation" {
			origin = "simulation"
		}
		OrdersCreated.WithLabelValues(origin).Inc()
		if kwh, err := strconv.ParseFloat(e.AmountKwh, 64); err == nil {
			EnergySoldKwh.Add(kwh)
		}
	case event.MarketSimulated:
		MarketSimulations.Inc()
	case event.AllocationFailed:
		AllocationFailures.Inc()
	}
}
