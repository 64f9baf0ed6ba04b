// Package registry maps outbox event types to pub/sub topics and decodes
// stored envelopes before publish. Unknown or malformed events resolve to a
// NonRetryableError so the worker can dead-letter them instead of retrying.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

// NonRetryableError marks a publish failure that retrying cannot fix.
type NonRetryableError struct {
	Reason string
}

func (e *NonRetryableError) Error() string {
	return e.Reason
}

// EventDescriptor declares how a single event type is published.
type EventDescriptor struct {
	Topic  string
	Decode func(data json.RawMessage) (any, error)
}

// ResolvedEvent is a decoded, routable outbox event ready for publish.
type ResolvedEvent struct {
	Event    *models.OutboxEvent
	Envelope *outbox.PayloadEnvelope
	Payload  any
	Topic    string
}

// EventRegistry resolves outbox rows into publishable events.
type EventRegistry struct {
	descriptors map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) *EventRegistry {
	return &EventRegistry{
		descriptors: map[enums.OutboxEventType]EventDescriptor{
			enums.EventOrderStatusChanged: {
				Topic:  cfg.OrdersTopic,
				Decode: decodeInto[payloads.OrderStatusChangedEvent],
			},
			enums.EventShipmentCreated: {
				Topic:  cfg.OrdersTopic,
				Decode: decodeInto[payloads.ShipmentCreatedEvent],
			},
			enums.EventStockAdjusted: {
				Topic:  cfg.InventoryTopic,
				Decode: decodeInto[payloads.StockAdjustedEvent],
			},
			enums.EventPaymentReconciled: {
				Topic:  cfg.NotificationTopic,
				Decode: decodeInto[payloads.PaymentReconciledEvent],
			},
		},
	}
}

// Resolve decodes the stored envelope and routes it to the configured topic.
func (r *EventRegistry) Resolve(event *models.OutboxEvent) (*ResolvedEvent, error) {
	if event == nil {
		return nil, &NonRetryableError{Reason: "outbox event is nil"}
	}

	descriptor, ok := r.descriptors[event.EventType]
	if !ok {
		return nil, &NonRetryableError{Reason: fmt.Sprintf("no descriptor for event type %q", event.EventType)}
	}
	if descriptor.Topic == "" {
		return nil, &NonRetryableError{Reason: fmt.Sprintf("no topic configured for event type %q", event.EventType)}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, &NonRetryableError{Reason: fmt.Sprintf("malformed envelope: %v", err)}
	}

	payload, err := descriptor.Decode(envelope.Data)
	if err != nil {
		return nil, &NonRetryableError{Reason: fmt.Sprintf("malformed payload for %q: %v", event.EventType, err)}
	}

	return &ResolvedEvent{
		Event:    event,
		Envelope: &envelope,
		Payload:  payload,
		Topic:    descriptor.Topic,
	}, nil
}

func decodeInto[T any](data json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
