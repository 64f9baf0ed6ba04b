package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Repository persists shipment rows and return RTO identifiers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error)
	Upsert(ctx context.Context, shipment *models.Shipment) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.ShipmentStatus) error
	UpdateReturnRTO(ctx context.Context, orderID uuid.UUID, trackingID, shipmentID string) error
	GetOrderIDByRTOTrackingID(ctx context.Context, trackingID string) (uuid.UUID, error)
	GetWarehousePincode(ctx context.Context, warehouseID uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) GetByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "tracking_id = ?", trackingID).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) Upsert(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(shipment).Error
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.ShipmentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) GetOrderIDByRTOTrackingID(ctx context.Context, trackingID string) (uuid.UUID, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Select("order_id").
		First(&request, "rto_tracking_id = ?", trackingID).Error
	if err != nil {
		return uuid.Nil, err
	}
	return request.OrderID, nil
}

func (r *repository) GetWarehousePincode(ctx context.Context, warehouseID uuid.UUID) (string, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).
		Select("pincode").
		First(&warehouse, "id = ?", warehouseID).Error
	if err != nil {
		return "", err
	}
	return warehouse.Pincode, nil
}

func (r *repository) UpdateReturnRTO(ctx context.Context, orderID uuid.UUID, trackingID, shipmentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"rto_tracking_id": trackingID,
			"rto_shipment_id": shipmentID,
		}).Error
}
