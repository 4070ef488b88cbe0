package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/outbox/payloads"
)

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	rowID := uuid.New()

	event := models.OutboxEvent{
		ID:            rowID,
		EventType:     enums.EventOrderFulfilled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelopeFor(t, rowID, payloads.OrderFulfilledEvent{
			OrderID:     orderID,
			ServiceType: "cv_writing",
			PDFPath:     "orders/" + orderID.String() + "/cv_writing.pdf",
			ExpiresAt:   time.Now().Add(6 * time.Hour).UTC(),
			Attempt:     1,
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderFulfilledEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.Attempt != 1 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID != rowID.String() {
		t.Fatalf("envelope event id %q, want row id", resolved.Envelope.EventID)
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := envelopeFor(t, uuid.New(), payloads.OrderRenderFailedEvent{Stage: "render"})

	cases := map[string]models.OutboxEvent{
		"unknown event type": {
			EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid,
		},
		"aggregate mismatch": {
			EventType: enums.EventOrderPaid, AggregateType: "customer", AggregateID: uuid.New(), Payload: valid,
		},
		"missing aggregate id": {
			EventType: enums.EventOrderRenderFailed, AggregateType: enums.AggregateOrder, Payload: valid,
		},
		"null data": {
			EventType: enums.EventOrderRenderFailed, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"event_id":"x","data":null}`),
		},
		"payload shape": {
			EventType: enums.EventOrderRenderFailed, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"event_id":"x","data":{"attempt":"one"}}`),
		},
	}
	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !IsNonRetryable(err) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestEveryEventTypeIsRegistered(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range enums.OutboxEventTypes() {
		desc, ok := reg.Describe(eventType)
		if !ok {
			t.Fatalf("%s not registered", eventType)
		}
		if desc.AggregateType != eventType.Aggregate() || desc.Topic != "orders-topic" {
			t.Fatalf("unexpected descriptor for %s: %+v", eventType, desc)
		}
	}
}

func TestIsNonRetryableUnwraps(t *testing.T) {
	base := NewNonRetryableError(errors.New("bad attribute"))
	if !IsNonRetryable(errors.Join(errors.New("publish"), base)) {
		t.Fatalf("expected wrapped non-retryable to be detected")
	}
	if IsNonRetryable(errors.New("deadline exceeded")) {
		t.Fatalf("plain error must be retryable")
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopeFor(t *testing.T, id uuid.UUID, data any) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       body,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}
