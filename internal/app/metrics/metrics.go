// Package metrics exposes Prometheus collectors for the ledger layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reelpay",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reelpay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reelpay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reelpay",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	ledgerVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reelpay",
			Subsystem: "ledger",
			Name:      "volume_total",
			Help:      "Total token volume moved by committed ledger operations.",
		},
		[]string{"kind"},
	)

	conservationDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reelpay",
			Subsystem: "ledger",
			Name:      "conservation_drift",
			Help:      "Difference between recorded flows and held balances per platform. Zero when the ledger conserves value.",
		},
		[]string{"platform"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerOps,
		ledgerVolume,
		conservationDrift,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one handled request against a route template.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight request gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight request gauge.
func DecInFlight() { httpInFlight.Dec() }

// RecordLedgerOp counts one ledger operation attempt by outcome.
func RecordLedgerOp(kind, status string) {
	ledgerOps.WithLabelValues(kind, status).Inc()
}

// ObserveLedgerAmount adds the committed amount to the volume counter.
func ObserveLedgerAmount(kind string, amount int64) {
	if amount < 0 {
		return
	}
	ledgerVolume.WithLabelValues(kind).Add(float64(amount))
}

// SetConservationDrift publishes the audited drift for a platform.
func SetConservationDrift(platformID string, drift int64) {
	conservationDrift.WithLabelValues(platformID).Set(float64(drift))
}
