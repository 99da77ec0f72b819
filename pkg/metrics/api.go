package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics provides observability for HTTP API operations.
//
// Implementations collect metrics about API requests, latency, and
// outcomes. This interface is optional - if not provided to the server,
// a no-op implementation is used with zero overhead.
type APIMetrics interface {
	// RecordRequest records a completed API request with its operation
	// name, duration, and outcome.
	//
	// Parameters:
	//   - operation: logical operation name (e.g. "create_file", "list_directory")
	//   - duration: time taken to process the request
	//   - status: error code name for failures, "ok" for success
	RecordRequest(operation string, duration time.Duration, status string)

	// RecordRequestStart increments the in-flight request counter.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight request counter.
	RecordRequestEnd(operation string)

	// RecordRateLimited increments the rejected-by-rate-limit counter.
	RecordRateLimited()
}

// apiMetrics is the Prometheus implementation of APIMetrics.
type apiMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	rateLimited      prometheus.Counter
}

// NewAPIMetrics creates a new Prometheus-backed APIMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewAPIMetrics() APIMetrics {
	if !IsEnabled() {
		return &noopAPIMetrics{}
	}

	reg := GetRegistry()

	return &apiMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdrive_api_requests_total",
				Help: "Total number of API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "orgdrive_api_request_duration_seconds",
				Help: "Duration of API requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
				},
			},
			[]string{"operation"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orgdrive_api_requests_in_flight",
				Help: "Number of API requests currently being processed",
			},
			[]string{"operation"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "orgdrive_api_rate_limited_total",
				Help: "Total number of API requests rejected by the rate limiter",
			},
		),
	}
}

func (m *apiMetrics) RecordRequest(operation string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *apiMetrics) RecordRequestStart(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *apiMetrics) RecordRequestEnd(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *apiMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// noopAPIMetrics is a no-op implementation used when metrics are disabled.
type noopAPIMetrics struct{}

func (n *noopAPIMetrics) RecordRequest(string, time.Duration, string) {}
func (n *noopAPIMetrics) RecordRequestStart(string)                   {}
func (n *noopAPIMetrics) RecordRequestEnd(string)                     {}
func (n *noopAPIMetrics) RecordRateLimited()                          {}
