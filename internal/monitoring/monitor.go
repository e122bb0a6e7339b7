// Package monitoring exposes the engine's operational metrics to Prometheus.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's metrics on a private registry so tests can
// create collectors without colliding on the default one.
type Collector struct {
	registry *prometheus.Registry

	ordersPlaced     prometheus.Counter
	orderLines       prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	shortfalls       *prometheus.CounterVec
	batchesConsumed  prometheus.Counter
	forecastDuration prometheus.Histogram
}

// NewCollector creates and registers the engine metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders committed successfully",
		}),
		orderLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_lines_total",
			Help: "Dish lines across committed orders",
		}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Orders rejected, by reason",
		}, []string{"reason"}),
		shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_shortfalls_total",
			Help: "Allocation shortfalls observed, by ingredient",
		}, []string{"ingredient"}),
		batchesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batches_consumed_total",
			Help: "Batches drawn from during order commits",
		}),
		forecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_duration_seconds",
			Help:    "Time spent building a revenue forecast",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.ordersPlaced,
		c.orderLines,
		c.ordersRejected,
		c.shortfalls,
		c.batchesConsumed,
		c.forecastDuration,
	)
	return c
}

// OrderPlaced records a committed order with its line count.
func (c *Collector) OrderPlaced(lines int) {
	c.ordersPlaced.Inc()
	c.orderLines.Add(float64(lines))
}

// OrderRejected records a rejection by reason.
func (c *Collector) OrderRejected(reason string) {
	c.ordersRejected.WithLabelValues(reason).Inc()
}

// ShortfallObserved records an ingredient running short during planning.
func (c *Collector) ShortfallObserved(ingredient string) {
	c.shortfalls.WithLabelValues(ingredient).Inc()
}

// BatchesConsumed records how many batches an order drew from.
func (c *Collector) BatchesConsumed(count int) {
	c.batchesConsumed.Add(float64(count))
}

// ObserveForecastDuration records one forecast build.
func (c *Collector) ObserveForecastDuration(seconds float64) {
	c.forecastDuration.Observe(seconds)
}

// Handler serves the registry for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
