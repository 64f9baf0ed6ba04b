package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/internal/ledger"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReserveLine is one warehouse/product/quantity triple of a reservation.
// SellerID travels with the line so aggregate rows created on the consume
// path carry the owning seller.
type ReserveLine struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	Qty         int
}

// ReserveInput reserves stock for an order across one or more warehouses.
type ReserveInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Lines   []ReserveLine
}

// ReleaseInput returns previously reserved stock.
type ReleaseInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Lines   []ReserveLine
}

// AdjustInput applies a manual quantity change to one stock row.
type AdjustInput struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	Delta       int
	Reason      string
	ActorID     uuid.UUID
}

// TransferInput moves unreserved stock between two warehouses.
type TransferInput struct {
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	ProductID       uuid.UUID
	SellerID        uuid.UUID
	Qty             int
	Reason          string
	ActorID         uuid.UUID
}

// Service owns all stock mutations. Reservations hold stock without changing
// quantity; adjustments and transfers change quantity and rebuild the
// per-product aggregate in the same transaction.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) error
	ReserveTx(ctx context.Context, tx *gorm.DB, input ReserveInput) error
	Release(ctx context.Context, input ReleaseInput) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error
	ConsumeTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error
	Adjust(ctx context.Context, input AdjustInput) (*models.WarehouseStock, error)
	AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WarehouseStock, error)
	Transfer(ctx context.Context, input TransferInput) error

	GetWarehouseStock(ctx context.Context, warehouseID, productID uuid.UUID) (*models.WarehouseStock, error)
	GetProductStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error)
}

type service struct {
	runner txRunner
	repo   Repository
	ledger ledger.Service
	outbox outbox.Service
	logg   *logger.Logger
}

// NewService wires the inventory service.
func NewService(runner txRunner, repo Repository, ledgerSvc ledger.Service, outboxSvc outbox.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory repository is required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service is required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{runner: runner, repo: repo, ledger: ledgerSvc, outbox: outboxSvc, logg: logg}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReserveTx(ctx, tx, input)
	})
}

// ReserveTx reserves every line or none. A failed guard aborts the
// transaction, which also discards the ledger entries of lines already
// reserved, so partial reservations never survive.
func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, input ReserveInput) error {
	if err := validateLines(input.OrderID, input.ActorID, input.Lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range input.Lines {
		ok, err := repo.ReserveQty(ctx, line.WarehouseID, line.ProductID, line.Qty)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return stockUnavailable(line)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to reserve stock")
		}
		if !ok {
			return stockUnavailable(line)
		}

		stock, err := repo.GetStock(ctx, line.WarehouseID, line.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock after reserve")
		}

		_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Delta:       line.Qty,
			Operation:   enums.LedgerOpReservation,
			PreviousQty: stock.ReservedQty - line.Qty,
			NewQty:      stock.ReservedQty,
			Reason:      "order " + input.OrderID.String(),
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseTx(ctx, tx, input)
	})
}

// ReleaseTx returns reserved stock. Quantities are capped at the currently
// reserved amount so a double release can never push the counter negative.
func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error {
	if err := validateLines(input.OrderID, input.ActorID, input.Lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range input.Lines {
		released, err := repo.ReleaseQty(ctx, line.WarehouseID, line.ProductID, line.Qty)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release stock")
		}
		if released == 0 {
			continue
		}

		stock, err := repo.GetStock(ctx, line.WarehouseID, line.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock after release")
		}

		_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Delta:       -released,
			Operation:   enums.LedgerOpRelease,
			PreviousQty: stock.ReservedQty + released,
			NewQty:      stock.ReservedQty,
			Reason:      "order " + input.OrderID.String(),
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ConsumeTx converts a reservation into a physical subtraction when the
// parcel leaves the warehouse. Both counters drop together, so the stock
// invariants hold at every point.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error {
	if err := validateLines(input.OrderID, input.ActorID, input.Lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range input.Lines {
		ok, err := repo.ConsumeQty(ctx, line.WarehouseID, line.ProductID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to consume reserved stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation missing for shipped quantity").
				WithDetails(map[string]any{
					"warehouseId": line.WarehouseID,
					"productId":   line.ProductID,
					"qty":         line.Qty,
				})
		}

		stock, err := repo.GetStock(ctx, line.WarehouseID, line.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock after consume")
		}

		_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Delta:       -line.Qty,
			Operation:   enums.LedgerOpSubtraction,
			PreviousQty: stock.Quantity + line.Qty,
			NewQty:      stock.Quantity,
			Reason:      "shipped for order " + input.OrderID.String(),
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}

		if _, err := repo.RecomputeProductStock(ctx, line.ProductID, line.SellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to recompute product stock")
		}
	}
	return nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.WarehouseStock, error) {
	var stock *models.WarehouseStock
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		stock, txErr = s.AdjustTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// AdjustTx changes quantity by delta. Negative deltas cannot take quantity
// below zero or below the reserved amount.
func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WarehouseStock, error) {
	if input.WarehouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id and product id are required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	repo := s.repo.WithTx(tx)
	if input.Delta > 0 {
		if err := repo.EnsureStockRow(ctx, input.WarehouseID, input.ProductID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to ensure stock row")
		}
	}

	ok, err := repo.AdjustQty(ctx, input.WarehouseID, input.ProductID, input.Delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to adjust stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStockUnavailable, "adjustment would break stock invariants").
			WithDetails(map[string]any{
				"warehouseId": input.WarehouseID,
				"productId":   input.ProductID,
				"delta":       input.Delta,
			})
	}

	stock, err := repo.GetStock(ctx, input.WarehouseID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock after adjust")
	}

	operation := enums.LedgerOpAddition
	if input.Delta < 0 {
		operation = enums.LedgerOpSubtraction
	}
	_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Delta:       input.Delta,
		Operation:   operation,
		PreviousQty: stock.Quantity - input.Delta,
		NewQty:      stock.Quantity,
		Reason:      input.Reason,
		ActorID:     input.ActorID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := repo.RecomputeProductStock(ctx, input.ProductID, input.SellerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to recompute product stock")
	}

	err = s.outbox.Emit(tx, enums.EventStockAdjusted, enums.AggregateWarehouse, input.WarehouseID,
		&outbox.ActorRef{ActorID: input.ActorID},
		payloads.StockAdjustedEvent{
			WarehouseID: input.WarehouseID,
			ProductID:   input.ProductID,
			Operation:   string(operation),
			Delta:       int64(input.Delta),
			NewQty:      int64(stock.Quantity),
			Reason:      input.Reason,
		})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithWarehouseID(ctx, input.WarehouseID.String()), "stock adjusted")
	return stock, nil
}

// Transfer moves unreserved stock between warehouses atomically. The failed
// leg of a transfer rolls back the whole transaction, so stock is never
// created or destroyed by a partial move.
func (s *service) Transfer(ctx context.Context, input TransferInput) error {
	if input.FromWarehouseID == uuid.Nil || input.ToWarehouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse ids and product id are required")
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if input.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}

	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.DeductAvailable(ctx, input.FromWarehouseID, input.ProductID, input.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to deduct stock from source warehouse")
		}
		if !ok {
			return stockUnavailable(ReserveLine{
				WarehouseID: input.FromWarehouseID,
				ProductID:   input.ProductID,
				Qty:         input.Qty,
			})
		}

		fromStock, err := repo.GetStock(ctx, input.FromWarehouseID, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load source stock")
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
			ProductID:   input.ProductID,
			WarehouseID: input.FromWarehouseID,
			Delta:       -input.Qty,
			Operation:   enums.LedgerOpTransfer,
			PreviousQty: fromStock.Quantity + input.Qty,
			NewQty:      fromStock.Quantity,
			Reason:      input.Reason,
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}

		if err := repo.EnsureStockRow(ctx, input.ToWarehouseID, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to ensure destination stock row")
		}
		ok, err = repo.AdjustQty(ctx, input.ToWarehouseID, input.ProductID, input.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to add stock to destination warehouse")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeDependency, "failed to add stock to destination warehouse")
		}

		toStock, err := repo.GetStock(ctx, input.ToWarehouseID, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load destination stock")
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
			ProductID:   input.ProductID,
			WarehouseID: input.ToWarehouseID,
			Delta:       input.Qty,
			Operation:   enums.LedgerOpTransfer,
			PreviousQty: toStock.Quantity - input.Qty,
			NewQty:      toStock.Quantity,
			Reason:      input.Reason,
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}

		if _, err := repo.RecomputeProductStock(ctx, input.ProductID, input.SellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to recompute product stock")
		}

		return s.outbox.Emit(tx, enums.EventStockAdjusted, enums.AggregateWarehouse, input.FromWarehouseID,
			&outbox.ActorRef{ActorID: input.ActorID},
			payloads.StockAdjustedEvent{
				WarehouseID: input.FromWarehouseID,
				ProductID:   input.ProductID,
				Operation:   string(enums.LedgerOpTransfer),
				Delta:       int64(-input.Qty),
				NewQty:      int64(fromStock.Quantity),
				Reason:      input.Reason,
			})
	})
}

func (s *service) GetWarehouseStock(ctx context.Context, warehouseID, productID uuid.UUID) (*models.WarehouseStock, error) {
	if warehouseID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id and product id are required")
	}
	stock, err := s.repo.GetStock(ctx, warehouseID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock")
	}
	return stock, nil
}

func (s *service) GetProductStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	stock, err := s.repo.GetProductStock(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product stock not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load product stock")
	}
	return stock, nil
}

func validateLines(orderID, actorID uuid.UUID, lines []ReserveLine) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range lines {
		if line.WarehouseID == uuid.Nil || line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id and product id are required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	return nil
}

func stockUnavailable(line ReserveLine) error {
	return pkgerrors.New(pkgerrors.CodeStockUnavailable, "insufficient unreserved stock").
		WithDetails(map[string]any{
			"warehouseId": line.WarehouseID,
			"productId":   line.ProductID,
			"requested":   line.Qty,
		})
}
