package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Order is the fulfillment aggregate. Status is mutated exclusively through
// state-machine transitions; Version backs the optimistic concurrency check.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   int64             `gorm:"column:order_number;not null;default:nextval('order_number_seq')"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	Currency      string            `gorm:"column:currency;not null;default:'INR'"`
	SubtotalCents int               `gorm:"column:subtotal_cents;not null"`
	TaxCents      int               `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents int               `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int               `gorm:"column:total_cents;not null"`
	Version       int64             `gorm:"column:version;not null;default:0"`

	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline      []TimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment       *Payment        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment      *Shipment       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ReturnRequest *ReturnRequest  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots one purchased product line.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	Qty         int       `gorm:"column:qty;not null"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TimelineEntry is an append-only audit record of one order transition.
type TimelineEntry struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null"`
	Description string            `gorm:"column:description;not null"`
	ActorID     uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole   enums.ActorRole   `gorm:"column:actor_role;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
