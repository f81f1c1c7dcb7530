// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the API client, checkout and view server report to.
type Recorder interface {
	ObserveAPICall(endpoint, outcome string, duration time.Duration)
	RecordCheckoutTransition(from, to string)
	ObserveViewRequest(method string, status int, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	apiCalls     *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	checkout     *prometheus.CounterVec
	viewRequests *prometheus.CounterVec
	viewLatency  prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_calls_total",
			Help: "Calls to the shop API by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_api_call_duration_seconds",
			Help:    "Latency of calls to the shop API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		checkout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "Checkout state machine transitions.",
		}, []string{"from", "to"}),
		viewRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_view_requests_total",
			Help: "Requests served by the view server by method and status code.",
		}, []string{"method", "status_code"}),
		viewLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_view_request_duration_seconds",
			Help:    "Latency of view server requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiLatency,
		c.checkout,
		c.viewRequests,
		c.viewLatency,
	)

	return c
}

// ObserveAPICall records one call to the shop API.
func (c *Collector) ObserveAPICall(endpoint, outcome string, duration time.Duration) {
	c.apiCalls.WithLabelValues(endpoint, outcome).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCheckoutTransition records a checkout state change.
func (c *Collector) RecordCheckoutTransition(from, to string) {
	c.checkout.WithLabelValues(from, to).Inc()
}

// ObserveViewRequest records one request to the view server.
func (c *Collector) ObserveViewRequest(method string, status int, duration time.Duration) {
	c.viewRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.viewLatency.Observe(duration.Seconds())
}

// Handler returns the exposition handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveAPICall(string, string, time.Duration) {}
func (Nop) RecordCheckoutTransition(string, string) {}
func (Nop) ObserveViewRequest(string, int, time.Duration) {}
