package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductStock is the denormalized per-product aggregate. TotalQuantity is
// always recomputed as the sum of warehouse quantities inside the mutating
// transaction, never incremented in place.
type ProductStock struct {
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	SellerID      uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	TotalQuantity int       `gorm:"column:total_quantity;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
