package enums

import "fmt"

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool { return a == AggregateOrder }

// OutboxEventType is the event_type column of outbox_events. Every type is
// emitted against the order aggregate.
type OutboxEventType string

const (
	EventOrderPaid            OutboxEventType = "order_paid"
	EventOrderPaymentFailed   OutboxEventType = "order_payment_failed"
	EventOrderFulfilled       OutboxEventType = "order_fulfilled"
	EventOrderRenderFailed    OutboxEventType = "order_render_failed"
	EventOrderArtifactExpired OutboxEventType = "order_artifact_expired"
	EventOrderArtifactDeleted OutboxEventType = "order_artifact_deleted"
)

var outboxEventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderPaid:            AggregateOrder,
	EventOrderPaymentFailed:   AggregateOrder,
	EventOrderFulfilled:       AggregateOrder,
	EventOrderRenderFailed:    AggregateOrder,
	EventOrderArtifactExpired: AggregateOrder,
	EventOrderArtifactDeleted: AggregateOrder,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := outboxEventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event belongs to, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType { return outboxEventAggregates[e] }

// OutboxEventTypes lists every known event type in no particular order.
func OutboxEventTypes() []OutboxEventType {
	out := make([]OutboxEventType, 0, len(outboxEventAggregates))
	for t := range outboxEventAggregates {
		out = append(out, t)
	}
	return out
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	t := OutboxEventType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return t, nil
}
