package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetricsRecordResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.ObserveResult("order_paid", OutboxPublished)
	m.ObserveResult("order_paid", OutboxPublished)
	m.ObserveResult("", OutboxDeadLettered)
	m.ObservePublish(20 * time.Millisecond)
	m.IncBatchFailure()

	if got := testutil.ToFloat64(m.results.WithLabelValues("order_paid", OutboxPublished)); got != 2 {
		t.Fatalf("expected 2 published, got %f", got)
	}
	if got := testutil.ToFloat64(m.results.WithLabelValues("unknown", OutboxDeadLettered)); got != 1 {
		t.Fatalf("expected blank event type bucketed as unknown, got %f", got)
	}
	if got := testutil.ToFloat64(m.batches); got != 1 {
		t.Fatalf("expected 1 batch failure, got %f", got)
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.ObserveResult("order_paid", OutboxRetried)
	nilMetrics.ObservePublish(time.Second)
	if NewOutboxMetrics(nil) != nil {
		t.Fatalf("expected nil metrics without a registerer")
	}
}
