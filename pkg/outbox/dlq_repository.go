package outbox

import (
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

// DLQRepository stores outbox events that exhausted their publish attempts.
type DLQRepository interface {
	Insert(tx *gorm.DB, entry *models.OutboxDLQ) error
}

type dlqRepository struct{}

func NewDLQRepository() DLQRepository {
	return &dlqRepository{}
}

func (r *dlqRepository) Insert(tx *gorm.DB, entry *models.OutboxDLQ) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "dlq insert requires a transaction")
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dlq entry is required")
	}
	if err := tx.Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to insert outbox dlq entry")
	}
	return nil
}
