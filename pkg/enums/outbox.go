package enums

import "fmt"

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventShipmentCreated    OutboxEventType = "shipment.created"
	EventStockAdjusted      OutboxEventType = "inventory.stock_adjusted"
	EventPaymentReconciled  OutboxEventType = "payment.reconciled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderStatusChanged,
	EventShipmentCreated,
	EventStockAdjusted,
	EventPaymentReconciled,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateWarehouse OutboxAggregateType = "warehouse"
	AggregateShipment  OutboxAggregateType = "shipment"
)

// IsValid reports whether the value is a known OutboxAggregateType.
func (t OutboxAggregateType) IsValid() bool {
	switch t {
	case AggregateOrder, AggregateWarehouse, AggregateShipment:
		return true
	}
	return false
}
