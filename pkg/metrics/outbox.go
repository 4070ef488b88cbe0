package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outbox publish outcomes.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the outbox publisher. A nil value records nothing.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	latency prometheus.Histogram
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &OutboxMetrics{
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the publisher, by event type and result.",
		}, []string{"event_type", "result"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_seconds",
			Help:      "Time from Publish to server acknowledgement.",
			Buckets:   prometheus.DefBuckets,
		}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_failures_total",
			Help:      "Publisher batches rolled back on a bookkeeping error.",
		}),
	}
}

func (m *OutboxMetrics) ObserveResult(eventType, result string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

func (m *OutboxMetrics) ObservePublish(took time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(took.Seconds())
}

func (m *OutboxMetrics) IncBatchFailure() {
	if m == nil {
		return
	}
	m.batches.Inc()
}
