package enums

import "fmt"

// OrderStatus is the single authoritative lifecycle field of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusPickup         OrderStatus = "pickup"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"

	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusReturnApproved  OrderStatus = "return_approved"
	OrderStatusReturnRejected  OrderStatus = "return_rejected"
	OrderStatusReturnReceived  OrderStatus = "return_received"
	OrderStatusQualityPassed   OrderStatus = "quality_passed"
	OrderStatusQualityFailed   OrderStatus = "quality_failed"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusPacked,
	OrderStatusReadyForPickup,
	OrderStatusPickup,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturnRequested,
	OrderStatusReturnApproved,
	OrderStatusReturnRejected,
	OrderStatusReturnReceived,
	OrderStatusQualityPassed,
	OrderStatusQualityFailed,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusReturnRejected, OrderStatusQualityFailed:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
