package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a seller-owned stocking location.
type Warehouse struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name          string    `gorm:"column:name;not null"`
	Pincode       string    `gorm:"column:pincode;not null"`
	TotalCapacity int       `gorm:"column:total_capacity;not null;default:0"`
	UsedCapacity  int       `gorm:"column:used_capacity;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// WarehouseStock tracks quantity and reservation per product per warehouse.
// Invariant: 0 <= ReservedQty <= Quantity.
type WarehouseStock struct {
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	ReservedQty int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the quantity not held by reservations.
func (s WarehouseStock) Available() int {
	return s.Quantity - s.ReservedQty
}
