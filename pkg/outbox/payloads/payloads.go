// Package payloads defines the data shapes carried inside outbox event
// envelopes. Consumers decode Payload.Data into one of these structs based
// on the event type.
package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatusChangedEvent is emitted on every order lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	SellerID   uuid.UUID `json:"sellerId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Reason     string    `json:"reason,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

// ShipmentCreatedEvent is emitted once a carrier accepts a shipment.
type ShipmentCreatedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	TrackingID  string    `json:"trackingId"`
	CourierName string    `json:"courierName,omitempty"`
	Carrier     string    `json:"carrier"`
	IsReturn    bool      `json:"isReturn"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StockAdjustedEvent is emitted for manual adjustments and transfers.
type StockAdjustedEvent struct {
	WarehouseID uuid.UUID `json:"warehouseId"`
	ProductID   uuid.UUID `json:"productId"`
	Operation   string    `json:"operation"`
	Delta       int64     `json:"delta"`
	NewQty      int64     `json:"newQty"`
	Reason      string    `json:"reason,omitempty"`
}

// PaymentReconciledEvent is emitted when a provider event changes payment
// state, including refund progress.
type PaymentReconciledEvent struct {
	OrderID          uuid.UUID `json:"orderId"`
	ProviderEventID  string    `json:"providerEventId"`
	PaymentStatus    string    `json:"paymentStatus"`
	PaidCents        int64     `json:"paidCents"`
	RefundedCents    int64     `json:"refundedCents"`
	ProviderRefundID string    `json:"providerRefundId,omitempty"`
}
