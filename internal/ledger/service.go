package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

// Service records immutable stock mutations. Every quantity or reservation
// change carries exactly one ledger entry, written in the same transaction
// as the stock update.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.InventoryLedgerEntry, error)
	History(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	HistoryForWarehouse(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	AuditQuantity(ctx context.Context, warehouseID, productID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
type RecordEntryInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Delta       int
	Operation   enums.LedgerOperation
	PreviousQty int
	NewQty      int
	Reason      string
	ActorID     uuid.UUID
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.InventoryLedgerEntry, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if !input.Operation.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger operation").
			WithDetails(map[string]any{"operation": string(input.Operation)})
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.NewQty != input.PreviousQty+input.Delta {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry does not balance").
			WithDetails(map[string]any{
				"previousQty": input.PreviousQty,
				"delta":       input.Delta,
				"newQty":      input.NewQty,
			})
	}

	entry := &models.InventoryLedgerEntry{
		ID:          uuid.New(),
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Delta:       input.Delta,
		Operation:   input.Operation,
		PreviousQty: input.PreviousQty,
		NewQty:      input.NewQty,
		ActorID:     input.ActorID,
	}
	if input.Reason != "" {
		reason := input.Reason
		entry.Reason = &reason
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) History(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.ListByProduct(ctx, productID, limit)
}

func (s *service) HistoryForWarehouse(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.ListByWarehouseProduct(ctx, warehouseID, productID, limit)
}

// AuditQuantity replays physical operations and returns the implied quantity.
func (s *service) AuditQuantity(ctx context.Context, warehouseID, productID uuid.UUID) (int64, error) {
	if warehouseID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.SumDeltas(ctx, warehouseID, productID)
}
