package models

import (
	"time"

	"github.com/google/uuid"
)

// ReturnRequest carries the detail of an in-flight return. The return's
// position in the lifecycle lives on Order.Status; this row records intent,
// the receiving warehouse and the RTO shipment identifiers.
type ReturnRequest struct {
	OrderID           uuid.UUID  `gorm:"column:order_id;type:uuid;primaryKey"`
	Reason            string     `gorm:"column:reason;not null"`
	WarehouseID       uuid.UUID  `gorm:"column:warehouse_id;type:uuid;not null"`
	RTOTrackingID     *string    `gorm:"column:rto_tracking_id"`
	RTOShipmentID     *string    `gorm:"column:rto_shipment_id"`
	RefundAmountCents int        `gorm:"column:refund_amount_cents;not null;default:0"`
	RequestedBy       uuid.UUID  `gorm:"column:requested_by;type:uuid;not null"`
	ResolvedAt        *time.Time `gorm:"column:resolved_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
