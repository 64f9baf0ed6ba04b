package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/internal/inventory"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

const maxTransitionAttempts = 3

var errVersionConflict = errors.New("order version conflict")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryService interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, input inventory.ReserveInput) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, input inventory.ReleaseInput) error
	ConsumeTx(ctx context.Context, tx *gorm.DB, input inventory.ReleaseInput) error
	AdjustTx(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*models.WarehouseStock, error)
}

type shipmentOrchestrator interface {
	CreateShipment(ctx context.Context, order *models.Order) error
	CreateReturnShipment(ctx context.Context, order *models.Order) error
	CancelShipment(ctx context.Context, order *models.Order) error
}

// Actor identifies who triggered a transition.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// CreateOrderLine is one purchased product line of a new order.
type CreateOrderLine struct {
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	PriceCents  int
}

// CreateOrderInput creates an order with its inventory reservation.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	Currency        string
	TaxCents        int
	ShippingCents   int
	ProviderOrderID string
	Lines           []CreateOrderLine
	Actor           Actor
}

// ReturnInput opens a return on a delivered order.
type ReturnInput struct {
	OrderID           uuid.UUID
	Reason            string
	WarehouseID       uuid.UUID
	RefundAmountCents int
	Actor             Actor
}

// Service drives the order lifecycle. Every status change goes through the
// transition table, appends a timeline entry and emits an outbox event in
// the same transaction. Concurrent writers are serialized by an optimistic
// version check with bounded retry.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Timeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)

	Confirm(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	StartProcessing(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	MarkPacked(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	MarkReadyForPickup(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*models.Order, error)

	RequestReturn(ctx context.Context, input ReturnInput) (*models.Order, error)
	ApproveReturn(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	RejectReturn(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*models.Order, error)
	MarkReturnReceived(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	CompleteQualityCheck(ctx context.Context, orderID uuid.UUID, passed bool, actor Actor) (*models.Order, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)

	AdvanceShipping(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor Actor) (*models.Order, error)
}

type service struct {
	runner       txRunner
	repo         Repository
	inventorySvc inventoryService
	orchestrator shipmentOrchestrator
	outbox       outbox.Service
	logg         *logger.Logger
}

// NewService wires the orders service.
func NewService(runner txRunner, repo Repository, inventorySvc inventoryService, orchestrator shipmentOrchestrator, outboxSvc outbox.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	}
	if inventorySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory service is required")
	}
	if orchestrator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipment orchestrator is required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{
		runner:       runner,
		repo:         repo,
		inventorySvc: inventorySvc,
		orchestrator: orchestrator,
		outbox:       outboxSvc,
		logg:         logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if input.ProviderOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	subtotal := 0
	items := make([]models.OrderItem, 0, len(input.Lines))
	reserveLines := make([]inventory.ReserveLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line price must be non-negative")
		}
		subtotal += line.Qty * line.PriceCents
		items = append(items, models.OrderItem{
			ID:          uuid.New(),
			ProductID:   line.ProductID,
			SellerID:    line.SellerID,
			WarehouseID: line.WarehouseID,
			Qty:         line.Qty,
			PriceCents:  line.PriceCents,
		})
		reserveLines = append(reserveLines, inventory.ReserveLine{
			WarehouseID: line.WarehouseID,
			ProductID:   line.ProductID,
			SellerID:    line.SellerID,
			Qty:         line.Qty,
		})
	}

	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       input.BuyerID,
		Status:        enums.OrderStatusPending,
		Currency:      currency,
		SubtotalCents: subtotal,
		TaxCents:      input.TaxCents,
		ShippingCents: input.ShippingCents,
		TotalCents:    subtotal + input.TaxCents + input.ShippingCents,
		Items:         items,
		Payment: &models.Payment{
			Status:          enums.PaymentStatusPending,
			ProviderOrderID: input.ProviderOrderID,
		},
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order")
		}

		if err := s.inventorySvc.ReserveTx(ctx, tx, inventory.ReserveInput{
			OrderID: order.ID,
			ActorID: input.Actor.ID,
			Lines:   reserveLines,
		}); err != nil {
			return err
		}

		return repo.AppendTimeline(ctx, &models.TimelineEntry{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Status:      enums.OrderStatusPending,
			Description: "order placed, stock reserved",
			ActorID:     input.Actor.ID,
			ActorRole:   input.Actor.Role,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	return order, nil
}

func (s *service) Timeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListTimeline(ctx, orderID)
}

func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusConfirmed, actor, "payment captured, order confirmed", nil)
}

func (s *service) StartProcessing(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusProcessing, actor, "seller started processing", nil)
}

func (s *service) MarkPacked(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusPacked, actor, "order packed", nil)
}

// MarkReadyForPickup commits the status change first, then asks the carrier
// for a shipment. The orchestrator short-circuits when a tracking id already
// exists, so a failed attempt can be retried safely.
func (s *service) MarkReadyForPickup(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.transition(ctx, orderID, enums.OrderStatusReadyForPickup, actor, "order ready for pickup", nil)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.CreateShipment(ctx, order); err != nil {
		return order, err
	}
	return s.repo.GetByID(ctx, order.ID)
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*models.Order, error) {
	description := "order cancelled"
	if reason != "" {
		description = "order cancelled: " + reason
	}
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, actor, description,
		func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
			extra["cancelled_at"] = time.Now().UTC()
			return s.inventorySvc.ReleaseTx(ctx, tx, inventory.ReleaseInput{
				OrderID: order.ID,
				ActorID: actor.ID,
				Lines:   releaseLines(order),
			})
		})
}

func (s *service) RequestReturn(ctx context.Context, input ReturnInput) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason is required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiving warehouse id is required")
	}
	return s.transition(ctx, input.OrderID, enums.OrderStatusReturnRequested, input.Actor, "return requested: "+input.Reason,
		func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
			request := models.ReturnRequest{
				OrderID:           order.ID,
				Reason:            input.Reason,
				WarehouseID:       input.WarehouseID,
				RefundAmountCents: input.RefundAmountCents,
				RequestedBy:       input.Actor.ID,
			}
			return tx.WithContext(ctx).
				Where("order_id = ?", order.ID).
				FirstOrCreate(&request).Error
		})
}

func (s *service) ApproveReturn(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.transition(ctx, orderID, enums.OrderStatusReturnApproved, actor, "return approved", nil)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.CreateReturnShipment(ctx, order); err != nil {
		return order, err
	}
	return s.repo.GetByID(ctx, order.ID)
}

func (s *service) RejectReturn(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*models.Order, error) {
	description := "return rejected"
	if reason != "" {
		description = "return rejected: " + reason
	}
	return s.transition(ctx, orderID, enums.OrderStatusReturnRejected, actor, description,
		func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
			return resolveReturnRequest(ctx, tx, order.ID)
		})
}

func (s *service) MarkReturnReceived(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusReturnReceived, actor, "returned parcel received at warehouse", nil)
}

// CompleteQualityCheck restocks the returned units into the receiving
// warehouse when the check passes. A failed check is terminal and never
// restocks.
func (s *service) CompleteQualityCheck(ctx context.Context, orderID uuid.UUID, passed bool, actor Actor) (*models.Order, error) {
	if !passed {
		return s.transition(ctx, orderID, enums.OrderStatusQualityFailed, actor, "quality check failed, stock not returned",
			func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
				return resolveReturnRequest(ctx, tx, order.ID)
			})
	}

	return s.transition(ctx, orderID, enums.OrderStatusQualityPassed, actor, "quality check passed, stock returned",
		func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
			if order.ReturnRequest == nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "order has no return request")
			}
			for _, item := range order.Items {
				if _, err := s.inventorySvc.AdjustTx(ctx, tx, inventory.AdjustInput{
					WarehouseID: order.ReturnRequest.WarehouseID,
					ProductID:   item.ProductID,
					SellerID:    item.SellerID,
					Delta:       item.Qty,
					Reason:      "return restock for order " + order.ID.String(),
					ActorID:     actor.ID,
				}); err != nil {
					return err
				}
			}
			return resolveReturnRequest(ctx, tx, order.ID)
		})
}

func (s *service) MarkRefunded(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusRefunded, actor, "refund settled", nil)
}

// shippingRank orders the linear part of the lifecycle so carrier updates
// that arrive out of order or skip a step can advance through intermediates.
var shippingRank = map[enums.OrderStatus]int{
	enums.OrderStatusReadyForPickup: 0,
	enums.OrderStatusPickup:         1,
	enums.OrderStatusShipped:        2,
	enums.OrderStatusDelivered:      3,
}

// AdvanceShipping walks the order forward to the target shipping status,
// passing through intermediate statuses. Already-reached targets are a no-op.
func (s *service) AdvanceShipping(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor Actor) (*models.Order, error) {
	targetRank, ok := shippingRank[target]
	if !ok || target == enums.OrderStatusReadyForPickup {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "not a shipping status")
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	currentRank, ok := shippingRank[order.Status]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not in the shipping phase").
			WithDetails(map[string]any{"status": order.Status})
	}
	if currentRank >= targetRank {
		return order, nil
	}

	steps := []enums.OrderStatus{enums.OrderStatusPickup, enums.OrderStatusShipped, enums.OrderStatusDelivered}
	for _, step := range steps {
		if shippingRank[step] <= currentRank || shippingRank[step] > targetRank {
			continue
		}
		var hook transitionHook
		switch step {
		case enums.OrderStatusPickup:
			// Leaving the warehouse converts the reservation into a real
			// stock subtraction.
			hook = func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
				return s.inventorySvc.ConsumeTx(ctx, tx, inventory.ReleaseInput{
					OrderID: order.ID,
					ActorID: actor.ID,
					Lines:   releaseLines(order),
				})
			}
		case enums.OrderStatusDelivered:
			hook = func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error {
				extra["delivered_at"] = time.Now().UTC()
				return nil
			}
		}
		order, err = s.transition(ctx, orderID, step, actor, "carrier update: "+string(step), hook)
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}

type transitionHook func(ctx context.Context, tx *gorm.DB, order *models.Order, extra map[string]any) error

func (s *service) transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor, description string, hook transitionHook) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var out *models.Order
		err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.GetByID(ctx, orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
			}

			// Re-applying a transition the order already took is a no-op,
			// not an error. Duplicate webhook deliveries land here.
			if order.Status == to {
				out = order
				return nil
			}

			if !CanTransition(order.Status, to) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "transition not allowed").
					WithDetails(map[string]any{"from": order.Status, "to": to})
			}

			extra := map[string]any{}
			if hook != nil {
				if err := hook(ctx, tx, order, extra); err != nil {
					return err
				}
			}

			ok, err := repo.UpdateStatusVersioned(ctx, order.ID, to, order.Version, extra)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update order status")
			}
			if !ok {
				return errVersionConflict
			}

			if err := repo.AppendTimeline(ctx, &models.TimelineEntry{
				ID:          uuid.New(),
				OrderID:     order.ID,
				Status:      to,
				Description: description,
				ActorID:     actor.ID,
				ActorRole:   actor.Role,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to append timeline entry")
			}

			sellerID := uuid.Nil
			if len(order.Items) > 0 {
				sellerID = order.Items[0].SellerID
			}
			if err := s.outbox.Emit(tx, enums.EventOrderStatusChanged, enums.AggregateOrder, order.ID,
				&outbox.ActorRef{ActorID: actor.ID, Role: actor.Role},
				payloads.OrderStatusChangedEvent{
					OrderID:    order.ID,
					SellerID:   sellerID,
					FromStatus: string(order.Status),
					ToStatus:   string(to),
					Reason:     description,
					ChangedAt:  time.Now().UTC(),
				}); err != nil {
				return err
			}

			order.Status = to
			order.Version++
			out = order
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order transitioned to "+string(to))
		return out, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "order modified concurrently, retries exhausted")
}

func releaseLines(order *models.Order) []inventory.ReserveLine {
	lines := make([]inventory.ReserveLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.ReserveLine{
			WarehouseID: item.WarehouseID,
			ProductID:   item.ProductID,
			SellerID:    item.SellerID,
			Qty:         item.Qty,
		})
	}
	return lines
}

func resolveReturnRequest(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("order_id = ?", orderID).
		Update("resolved_at", time.Now().UTC()).Error
}
