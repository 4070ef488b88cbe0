package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFulfillmentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)

	m.ObserveOutcome("webhook", "done")
	m.ObserveOutcome("webhook", "done")
	m.ObserveOutcome("retry_job", "render_failed")
	m.IncEnrichmentFailure("timeout")
	m.IncAmountMismatch("lenient")
	m.IncWebhook("chapa", "duplicate")
	m.ObserveRender(1500 * time.Millisecond)

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("webhook", "done")); got != 2 {
		t.Fatalf("expected 2 done outcomes, got %f", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("retry_job", "render_failed")); got != 1 {
		t.Fatalf("expected 1 render_failed outcome, got %f", got)
	}
	if got := testutil.ToFloat64(m.enrichFailures.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected 1 enrichment failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.amountMismatch.WithLabelValues("lenient")); got != 1 {
		t.Fatalf("expected 1 amount mismatch, got %f", got)
	}
	if got := testutil.ToFloat64(m.webhooks.WithLabelValues("chapa", "duplicate")); got != 1 {
		t.Fatalf("expected 1 duplicate webhook, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	mf := findMetricFamily(mfs, "printshop_render_duration_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one render observation, got %v", mf)
	}
}

func TestNilFulfillmentMetricsAreNoops(t *testing.T) {
	var m *FulfillmentMetrics
	m.ObserveOutcome("webhook", "done")
	m.IncEnrichmentFailure("")
	m.ObserveRender(time.Second)

	empty := NewFulfillmentMetrics(nil)
	empty.IncWebhook("chapa", "accepted")
}
