package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

// Repository persists outbox events. Writes always happen inside the
// caller's transaction so the event commits atomically with the state
// change it describes.
type Repository interface {
	Insert(tx *gorm.DB, event *models.OutboxEvent) error
	Exists(tx *gorm.DB, eventType string, aggregateID uuid.UUID) (bool, error)
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, reason string) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, reason string) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "outbox insert requires a transaction")
	}
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "outbox event is required")
	}
	if err := tx.Create(event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to insert outbox event")
	}
	return nil
}

func (r *repository) Exists(tx *gorm.DB, eventType string, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "outbox lookup requires a transaction")
	}
	var count int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check outbox event existence")
	}
	return count > 0, nil
}

// FetchUnpublishedForPublish claims a batch of pending events with
// SKIP LOCKED so concurrent publishers never double-deliver.
func (r *repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox fetch requires a transaction")
	}
	if limit <= 0 {
		limit = 50
	}
	var events []models.OutboxEvent
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to fetch unpublished outbox events")
	}
	return events, nil
}

func (r *repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "outbox update requires a transaction")
	}
	now := time.Now().UTC()
	err := tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": now,
			"last_error":   nil,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to mark outbox event published")
	}
	return nil
}

func (r *repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, reason string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "outbox update requires a transaction")
	}
	err := tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    truncateReason(reason),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to mark outbox event failed")
	}
	return nil
}

// MarkTerminalTx pushes the attempt count past the publish ceiling so the
// row is never picked up again. The DLQ copy is inserted by the worker in
// the same transaction.
func (r *repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, reason string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "outbox update requires a transaction")
	}
	err := tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1000"),
			"last_error":    truncateReason(reason),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to mark outbox event terminal")
	}
	return nil
}

const maxReasonLen = 1024

func truncateReason(reason string) string {
	if len(reason) > maxReasonLen {
		return reason[:maxReasonLen]
	}
	return reason
}
