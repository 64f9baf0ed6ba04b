package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Payment is the order's payment sub-state, reconciled from provider webhooks.
type Payment struct {
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;primaryKey"`
	Status          enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	ProviderOrderID string              `gorm:"column:provider_order_id;not null"`
	TransactionID   *string             `gorm:"column:transaction_id"`
	Refunds         []Refund            `gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Refund is an append-only refund record keyed by the provider refund id so
// retried webhook delivery upserts instead of double-counting.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProviderRefundID string             `gorm:"column:provider_refund_id;not null;uniqueIndex"`
	AmountCents      int                `gorm:"column:amount_cents;not null"`
	Status           enums.RefundStatus `gorm:"column:status;type:refund_status_enum;not null;default:'created'"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
