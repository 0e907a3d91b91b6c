package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderStatusChangedEvent{
		OrderID:     orderID,
		OrderNumber: "ORD-20260105090000-ABCDEF",
		From:        enums.OrderStatusShipped,
		To:          enums.OrderStatusConfirmed,
		Actor:       "SYSTEM",
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "order-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.To != enums.OrderStatusConfirmed {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, []byte(`{"order_id":"00000000-0000-0000-0000-000000000001"}`))

	tests := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "mystery_event",
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       valid,
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.New(),
			Payload:       valid,
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       valid,
		},
		"null payload": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"missing event id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":1,"data":{"order_id":"00000000-0000-0000-0000-000000000001"}}`),
		},
		"future version": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":99,"eventId":"e-1","data":{}}`),
		},
		"broken envelope": {
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(""); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

func TestWithTopicRoutesSingleEventType(t *testing.T) {
	reg, err := NewEventRegistry("order-events", WithTopic(enums.EventStockAdjusted, "stock-events"))
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if got := reg.Topics(); len(got) != 2 || got[0] != "order-events" || got[1] != "stock-events" {
		t.Fatalf("unexpected topics %v", got)
	}

	inventoryID := uuid.New()
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateInventory,
		AggregateID:   inventoryID,
		Payload:       mustEnvelope(t, []byte(`{"inventory_id":"`+inventoryID.String()+`"}`)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "stock-events" {
		t.Fatalf("expected override topic, got %q", resolved.Descriptor.Topic)
	}
}

func TestWithTopicIgnoresEmptyAndRejectsUnknown(t *testing.T) {
	reg, err := NewEventRegistry("order-events", WithTopic(enums.EventStockAdjusted, ""))
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if got := reg.Topics(); len(got) != 1 {
		t.Fatalf("expected single topic, got %v", got)
	}
	if _, err := NewEventRegistry("order-events", WithTopic("mystery_event", "x")); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry("order-events")
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
