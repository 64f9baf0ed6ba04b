package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Shipment is the order's shipping sub-state. TrackingID is the carrier AWB
// and is write-once: once assigned it is never reassigned.
type Shipment struct {
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;primaryKey"`
	Provider       string               `gorm:"column:provider;not null"`
	CarrierOrderID *string              `gorm:"column:carrier_order_id"`
	ShipmentID     *string              `gorm:"column:shipment_id"`
	TrackingID     *string              `gorm:"column:tracking_id;uniqueIndex"`
	CourierName    *string              `gorm:"column:courier_name"`
	LabelURL       *string              `gorm:"column:label_url"`
	PickupToken    *string              `gorm:"column:pickup_token"`
	Status         enums.ShipmentStatus `gorm:"column:status;type:shipment_status_enum;not null;default:'pending'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
