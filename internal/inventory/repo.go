package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
)

// Repository manages warehouse stock rows and the per-product aggregate.
// Mutations use guarded single-statement updates so concurrent callers
// cannot oversell a row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetStock(ctx context.Context, warehouseID, productID uuid.UUID) (*models.WarehouseStock, error)
	ListStockByProduct(ctx context.Context, productID uuid.UUID) ([]models.WarehouseStock, error)
	EnsureStockRow(ctx context.Context, warehouseID, productID uuid.UUID) error

	// ReserveQty atomically moves qty into the reserved counter when enough
	// unreserved stock exists. Returns false when the guard fails.
	ReserveQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)

	// ReleaseQty atomically returns up to qty from the reserved counter and
	// reports how much was actually released.
	ReleaseQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (int, error)

	// AdjustQty atomically applies delta to quantity. The guard rejects
	// adjustments that would take quantity below zero or below the
	// currently reserved amount. Returns false when the guard fails.
	AdjustQty(ctx context.Context, warehouseID, productID uuid.UUID, delta int) (bool, error)

	// ConsumeQty atomically removes qty from both quantity and the reserved
	// counter when the reservation exists. Used when a shipment leaves the
	// warehouse. Returns false when the guard fails.
	ConsumeQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)

	// DeductAvailable atomically removes qty from quantity when enough
	// unreserved stock exists. Used by transfers. Returns false when the
	// guard fails.
	DeductAvailable(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)

	GetProductStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error)
	RecomputeProductStock(ctx context.Context, productID, sellerID uuid.UUID) (*models.ProductStock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetStock(ctx context.Context, warehouseID, productID uuid.UUID) (*models.WarehouseStock, error) {
	var stock models.WarehouseStock
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *repository) ListStockByProduct(ctx context.Context, productID uuid.UUID) ([]models.WarehouseStock, error) {
	var stocks []models.WarehouseStock
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&stocks).Error
	if err != nil {
		return nil, err
	}
	return stocks, nil
}

func (r *repository) EnsureStockRow(ctx context.Context, warehouseID, productID uuid.UUID) error {
	stock := models.WarehouseStock{
		WarehouseID: warehouseID,
		ProductID:   productID,
	}
	return r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		FirstOrCreate(&stock).Error
}

func (r *repository) ReserveQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Where("warehouse_id = ? AND product_id = ? AND quantity - reserved_qty >= ?", warehouseID, productID, qty).
		Update("reserved_qty", gorm.Expr("reserved_qty + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReleaseQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (int, error) {
	stock, err := r.GetStock(ctx, warehouseID, productID)
	if err != nil {
		return 0, err
	}
	releasable := qty
	if stock.ReservedQty < releasable {
		releasable = stock.ReservedQty
	}
	if releasable == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Where("warehouse_id = ? AND product_id = ? AND reserved_qty >= ?", warehouseID, productID, releasable).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", releasable))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, errors.New("reserved counter changed concurrently")
	}
	return releasable, nil
}

func (r *repository) AdjustQty(ctx context.Context, warehouseID, productID uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Where("warehouse_id = ? AND product_id = ? AND quantity + ? >= reserved_qty AND quantity + ? >= 0",
			warehouseID, productID, delta, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ConsumeQty(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Where("warehouse_id = ? AND product_id = ? AND reserved_qty >= ? AND quantity >= ?",
			warehouseID, productID, qty, qty).
		Updates(map[string]any{
			"quantity":     gorm.Expr("quantity - ?", qty),
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeductAvailable(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Where("warehouse_id = ? AND product_id = ? AND quantity - reserved_qty >= ?", warehouseID, productID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) GetProductStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	var stock models.ProductStock
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// RecomputeProductStock rebuilds the aggregate from warehouse rows. It never
// increments the stored value in place, so the aggregate cannot drift.
func (r *repository) RecomputeProductStock(ctx context.Context, productID, sellerID uuid.UUID) (*models.ProductStock, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.WarehouseStock{}).
		Select("SUM(quantity)").
		Where("product_id = ?", productID).
		Scan(&total).Error
	if err != nil {
		return nil, err
	}

	sum := 0
	if total != nil {
		sum = int(*total)
	}

	assign := map[string]any{"total_quantity": sum}
	if sellerID != uuid.Nil {
		assign["seller_id"] = sellerID
	}
	stock := models.ProductStock{
		ProductID:     productID,
		SellerID:      sellerID,
		TotalQuantity: sum,
	}
	err = r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Assign(assign).
		FirstOrCreate(&stock).Error
	if err != nil {
		return nil, err
	}
	stock.TotalQuantity = sum
	return &stock, nil
}
