package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// InventoryLedgerEntry records an immutable stock mutation. Entries are
// write-once, read-many; current quantities can be reconstructed from them.
type InventoryLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID uuid.UUID             `gorm:"column:warehouse_id;type:uuid;not null"`
	Delta       int                   `gorm:"column:delta;not null"`
	Operation   enums.LedgerOperation `gorm:"column:operation;type:ledger_operation_enum;not null"`
	PreviousQty int                   `gorm:"column:previous_qty;not null"`
	NewQty      int                   `gorm:"column:new_qty;not null"`
	Reason      *string               `gorm:"column:reason"`
	ActorID     uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
