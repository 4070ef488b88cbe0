package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "printshop"

// FulfillmentMetrics tracks the payment-to-artifact pipeline.
type FulfillmentMetrics struct {
	outcomes       *prometheus.CounterVec
	enrichFailures *prometheus.CounterVec
	renderDuration prometheus.Histogram
	amountMismatch *prometheus.CounterVec
	webhooks       *prometheus.CounterVec
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	m := &FulfillmentMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillment_outcomes_total",
			Help:      "Fulfillment attempts by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		enrichFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Enrichment calls that failed and were skipped.",
		}, []string{"reason"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Headless PDF render duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		amountMismatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_amount_mismatch_total",
			Help:      "Verified payments whose amount differs from the order price.",
		}, []string{"mode"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound payment webhooks by result.",
		}, []string{"provider", "result"}),
	}
	reg.MustRegister(m.outcomes, m.enrichFailures, m.renderDuration, m.amountMismatch, m.webhooks)
	return m
}

func (m *FulfillmentMetrics) ObserveOutcome(trigger, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(trigger), normalizeLabel(outcome)).Inc()
}

func (m *FulfillmentMetrics) IncEnrichmentFailure(reason string) {
	if m == nil || m.enrichFailures == nil {
		return
	}
	m.enrichFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *FulfillmentMetrics) ObserveRender(d time.Duration) {
	if m == nil || m.renderDuration == nil {
		return
	}
	m.renderDuration.Observe(d.Seconds())
}

// IncAmountMismatch counts a mismatch; mode is "lenient" or "strict".
func (m *FulfillmentMetrics) IncAmountMismatch(mode string) {
	if m == nil || m.amountMismatch == nil {
		return
	}
	m.amountMismatch.WithLabelValues(normalizeLabel(mode)).Inc()
}

func (m *FulfillmentMetrics) IncWebhook(provider, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// normalizeLabel lowercases v; blank values become "unknown".
func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
