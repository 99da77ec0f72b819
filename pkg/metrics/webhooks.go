package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookMetrics provides observability for webhook delivery.
//
// Optional - if not provided to the dispatcher, a no-op implementation
// is used.
type WebhookMetrics interface {
	// RecordDelivery records a completed delivery attempt with the event
	// name, duration, and outcome ("ok", "error", or the HTTP status class).
	RecordDelivery(event string, duration time.Duration, status string)

	// RecordQueueDepth updates the number of deliveries waiting to go out.
	RecordQueueDepth(depth int)
}

// webhookMetrics is the Prometheus implementation of WebhookMetrics.
type webhookMetrics struct {
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	queueDepth       prometheus.Gauge
}

// NewWebhookMetrics creates a new Prometheus-backed WebhookMetrics
// instance, or a no-op implementation if metrics are disabled.
func NewWebhookMetrics() WebhookMetrics {
	if !IsEnabled() {
		return &noopWebhookMetrics{}
	}

	reg := GetRegistry()

	return &webhookMetrics{
		deliveriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdrive_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts by event and status",
			},
			[]string{"event", "status"},
		),
		deliveryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgdrive_webhook_delivery_duration_seconds",
				Help:    "Duration of webhook delivery attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "orgdrive_webhook_queue_depth",
				Help: "Number of webhook deliveries waiting to be sent",
			},
		),
	}
}

func (m *webhookMetrics) RecordDelivery(event string, duration time.Duration, status string) {
	m.deliveriesTotal.WithLabelValues(event, status).Inc()
	m.deliveryDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func (m *webhookMetrics) RecordQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// noopWebhookMetrics is used when metrics are disabled.
type noopWebhookMetrics struct{}

func (n *noopWebhookMetrics) RecordDelivery(string, time.Duration, string) {}
func (n *noopWebhookMetrics) RecordQueueDepth(int)                         {}
