package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Repository manages order aggregates, their items and the timeline.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Order, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)

	// UpdateStatusVersioned applies the status change only when the stored
	// version still matches. Returns false on a version conflict.
	UpdateStatusVersioned(ctx context.Context, id uuid.UUID, to enums.OrderStatus, version int64, extra map[string]any) (bool, error)

	AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error
	ListTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Preload("Payment.Refunds").
		Preload("Shipment").
		Preload("ReturnRequest").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetByTrackingID(ctx context.Context, trackingID string) (*models.Order, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		First(&shipment, "tracking_id = ?", trackingID).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, shipment.OrderID)
}

func (r *repository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		First(&payment, "provider_order_id = ?", providerOrderID).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, payment.OrderID)
}

func (r *repository) UpdateStatusVersioned(ctx context.Context, id uuid.UUID, to enums.OrderStatus, version int64, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	for column, value := range extra {
		updates[column] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	var entries []models.TimelineEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
