package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation, with its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be delivered as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

var catalog = []EventDescriptor{
	describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
	describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
	describe[payloads.PaymentReconciledEvent](enums.EventPaymentReconciled, enums.AggregateOrder),
	describe[payloads.StockAdjustedEvent](enums.EventStockAdjusted, enums.AggregateInventory),
}

// Option customizes routing at construction.
type Option func(map[enums.OutboxEventType]EventDescriptor) error

// WithTopic routes one event type to topic instead of the default.
// An empty topic is ignored.
func WithTopic(eventType enums.OutboxEventType, topic string) Option {
	return func(entries map[enums.OutboxEventType]EventDescriptor) error {
		if topic == "" {
			return nil
		}
		desc, ok := entries[eventType]
		if !ok {
			return fmt.Errorf("unknown event type %s", eventType)
		}
		desc.Topic = topic
		entries[eventType] = desc
		return nil
	}
}

// EventRegistry maps each supported event type to its descriptor. The same
// registry serves both the Pub/Sub and the Kafka sink.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(topic string, opts ...Option) (*EventRegistry, error) {
	if topic == "" {
		return nil, errors.New("events topic is required")
	}
	entries := make(map[enums.OutboxEventType]EventDescriptor, len(catalog))
	for _, desc := range catalog {
		desc.Topic = topic
		entries[desc.EventType] = desc
	}
	for _, opt := range opts {
		if err := opt(entries); err != nil {
			return nil, err
		}
	}
	return &EventRegistry{entries: entries}, nil
}

// Topics lists the distinct topics events are routed to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve validates the row and decodes its typed payload. Every failure is
// a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if envelope.Version > outbox.EnvelopeVersion {
		return nil, nonRetryable("envelope version %d is newer than supported %d", envelope.Version, outbox.EnvelopeVersion)
	}
	if envelope.EventID == "" {
		return nil, nonRetryable("envelope for %s has no event id", event.EventType)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
