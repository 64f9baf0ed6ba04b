package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

// Repository manages payment rows and their refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	// LockByOrderID loads the payment under a row lock so concurrent
	// deliveries for the same order apply one at a time. Call inside a
	// transaction.
	LockByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus, transactionID *string) error

	GetRefundByProviderID(ctx context.Context, providerRefundID string) (*models.Refund, error)
	CreateRefund(ctx context.Context, refund *models.Refund) error
	UpdateRefundStatus(ctx context.Context, providerRefundID string, status enums.RefundStatus) error
	SumRefunds(ctx context.Context, orderID uuid.UUID, statuses []enums.RefundStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Refunds").
		First(&payment, "provider_order_id = ?", providerOrderID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Refunds").
		First(&payment, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) LockByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus, transactionID *string) error {
	updates := map[string]any{"status": status}
	if transactionID != nil {
		updates["transaction_id"] = *transactionID
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) GetRefundByProviderID(ctx context.Context, providerRefundID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		First(&refund, "provider_refund_id = ?", providerRefundID).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) UpdateRefundStatus(ctx context.Context, providerRefundID string, status enums.RefundStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("provider_refund_id = ?", providerRefundID).
		Update("status", status).Error
}

func (r *repository) SumRefunds(ctx context.Context, orderID uuid.UUID, statuses []enums.RefundStatus) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("SUM(amount_cents)").
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
