package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Repository manages persistence for inventory ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.InventoryLedgerEntry) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	ListByWarehouseProduct(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	SumDeltas(ctx context.Context, warehouseID, productID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.InventoryLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	var entries []models.InventoryLedgerEntry
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByWarehouseProduct(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	var entries []models.InventoryLedgerEntry
	query := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumDeltas replays the physical ledger operations for one stock row. Used
// to audit that the stored quantity matches the event history. Reservation
// and release entries track the reserved counter, not quantity, so they are
// excluded.
func (r *repository) SumDeltas(ctx context.Context, warehouseID, productID uuid.UUID) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryLedgerEntry{}).
		Select("SUM(delta)").
		Where("warehouse_id = ? AND product_id = ? AND operation IN ?",
			warehouseID, productID,
			[]enums.LedgerOperation{enums.LedgerOpAddition, enums.LedgerOpSubtraction, enums.LedgerOpTransfer}).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
