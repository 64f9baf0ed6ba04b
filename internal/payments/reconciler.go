package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

// Provider event types the reconciler understands.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventRefundCreated     = "refund.created"
	EventRefundProcessed   = "refund.processed"
	EventRefundFailed      = "refund.failed"
)

// Event is a normalized payment provider webhook event.
type Event struct {
	ProviderEventID  string
	Type             string
	ProviderOrderID  string
	TransactionID    string
	ProviderRefundID string
	AmountCents      int
	OccurredAt       time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderTransitions interface {
	Confirm(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string, actor orders.Actor) (*models.Order, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Reconciler folds provider payment events into local payment state.
// Applying the same event twice converges to the same state, and status
// never moves backward no matter how delivery is ordered.
type Reconciler interface {
	Apply(ctx context.Context, event Event) error
}

type reconciler struct {
	runner txRunner
	repo   Repository
	orders orderTransitions
	outbox outbox.Service
	logg   *logger.Logger
}

// NewReconciler wires the payment reconciler.
func NewReconciler(runner txRunner, repo Repository, orderSvc orderTransitions, outboxSvc outbox.Service, logg *logger.Logger) (Reconciler, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository is required")
	}
	if orderSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service is required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &reconciler{runner: runner, repo: repo, orders: orderSvc, outbox: outboxSvc, logg: logg}, nil
}

func (r *reconciler) Apply(ctx context.Context, event Event) error {
	if event.ProviderEventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event id is required")
	}
	if event.ProviderOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider order id is required")
	}

	payment, err := r.repo.GetByProviderOrderID(ctx, event.ProviderOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment for provider order id")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load payment")
	}

	ctx = r.logg.WithEventID(r.logg.WithOrderID(ctx, payment.OrderID.String()), event.ProviderEventID)

	switch event.Type {
	case EventPaymentAuthorized:
		return r.applyStatus(ctx, payment, enums.PaymentStatusAuthorized, event)
	case EventPaymentCaptured:
		return r.applyCaptured(ctx, payment, event)
	case EventPaymentFailed:
		return r.applyFailed(ctx, payment, event)
	case EventRefundCreated:
		return r.applyRefundCreated(ctx, payment, event)
	case EventRefundProcessed:
		return r.applyRefundProcessed(ctx, payment, event)
	case EventRefundFailed:
		return r.applyRefundFailed(ctx, payment, event)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment event type").
			WithDetails(map[string]any{"type": event.Type})
	}
}

// applyStatus moves the payment forward only. Late or replayed events that
// would move the status backward are absorbed silently. The rank check runs
// against a row-locked read so concurrent deliveries cannot regress a status
// committed between the initial load and this transaction.
func (r *reconciler) applyStatus(ctx context.Context, payment *models.Payment, to enums.PaymentStatus, event Event) error {
	var transactionID *string
	if event.TransactionID != "" {
		transactionID = &event.TransactionID
	}
	return r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		current, err := repo.LockByOrderID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to lock payment")
		}
		if current.Status.Rank() >= to.Rank() {
			r.logg.Debug(ctx, "payment event ignored, status already at or past target")
			return nil
		}
		if err := repo.UpdateStatus(ctx, payment.OrderID, to, transactionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update payment status")
		}
		return r.emitReconciled(tx, payment.OrderID, event, to, int64(event.AmountCents), 0)
	})
}

func (r *reconciler) applyCaptured(ctx context.Context, payment *models.Payment, event Event) error {
	if err := r.applyStatus(ctx, payment, enums.PaymentStatusPaid, event); err != nil {
		return err
	}

	// Capture confirms a pending order. Replays find the order already
	// confirmed, which the transition treats as a no-op.
	_, err := r.orders.Confirm(ctx, payment.OrderID, systemActor())
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		return err
	}
	return nil
}

func (r *reconciler) applyFailed(ctx context.Context, payment *models.Payment, event Event) error {
	applied := false
	err := r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		current, err := repo.LockByOrderID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to lock payment")
		}
		if current.Status.Rank() >= enums.PaymentStatusPaid.Rank() {
			r.logg.Debug(ctx, "payment failure ignored, payment already settled")
			return nil
		}
		if err := repo.UpdateStatus(ctx, payment.OrderID, enums.PaymentStatusFailed, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update payment status")
		}
		applied = true
		return r.emitReconciled(tx, payment.OrderID, event, enums.PaymentStatusFailed, 0, 0)
	})
	if err != nil || !applied {
		return err
	}

	// A failed payment releases the reservation by cancelling the order.
	_, err = r.orders.Cancel(ctx, payment.OrderID, "payment failed", systemActor())
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		return err
	}
	return nil
}

func (r *reconciler) applyRefundCreated(ctx context.Context, payment *models.Payment, event Event) error {
	if err := validateRefundEvent(event); err != nil {
		return err
	}

	order, err := r.orders.Get(ctx, payment.OrderID)
	if err != nil {
		return err
	}

	// The payment row lock serializes concurrent refund deliveries for an
	// order, so the sum-then-guard below always sees prior refunds.
	return r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)

		current, err := repo.LockByOrderID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to lock payment")
		}
		if current.Status.Rank() < enums.PaymentStatusPaid.Rank() {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot refund an uncaptured payment")
		}

		existing, err := repo.GetRefundByProviderID(ctx, event.ProviderRefundID)
		if err == nil {
			// Same provider refund id delivered again. Upsert, never
			// double-count.
			if existing.AmountCents != event.AmountCents {
				return pkgerrors.New(pkgerrors.CodeConflict, "refund amount changed between deliveries")
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to look up refund")
		}

		committed, err := repo.SumRefunds(ctx, payment.OrderID,
			[]enums.RefundStatus{enums.RefundStatusCreated, enums.RefundStatusProcessed})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to sum refunds")
		}
		if committed+int64(event.AmountCents) > int64(order.TotalCents) {
			return pkgerrors.New(pkgerrors.CodeRefundExceedsPaid, "refund total would exceed captured amount").
				WithDetails(map[string]any{
					"paidCents":      order.TotalCents,
					"refundedCents":  committed,
					"requestedCents": event.AmountCents,
				})
		}

		if err := repo.CreateRefund(ctx, &models.Refund{
			ID:               uuid.New(),
			OrderID:          payment.OrderID,
			ProviderRefundID: event.ProviderRefundID,
			AmountCents:      event.AmountCents,
			Status:           enums.RefundStatusCreated,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create refund")
		}

		return r.emitReconciled(tx, payment.OrderID, event, current.Status, int64(order.TotalCents), committed+int64(event.AmountCents))
	})
}

func (r *reconciler) applyRefundProcessed(ctx context.Context, payment *models.Payment, event Event) error {
	if err := validateRefundEvent(event); err != nil {
		return err
	}

	order, err := r.orders.Get(ctx, payment.OrderID)
	if err != nil {
		return err
	}

	var settled int64
	err = r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)

		current, err := repo.LockByOrderID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to lock payment")
		}

		existing, err := repo.GetRefundByProviderID(ctx, event.ProviderRefundID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Processed arrived before created. Upsert the row directly.
			if err := repo.CreateRefund(ctx, &models.Refund{
				ID:               uuid.New(),
				OrderID:          payment.OrderID,
				ProviderRefundID: event.ProviderRefundID,
				AmountCents:      event.AmountCents,
				Status:           enums.RefundStatusProcessed,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create refund")
			}
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to look up refund")
		} else if existing.Status != enums.RefundStatusProcessed {
			if err := repo.UpdateRefundStatus(ctx, event.ProviderRefundID, enums.RefundStatusProcessed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update refund status")
			}
		}

		settled, err = repo.SumRefunds(ctx, payment.OrderID, []enums.RefundStatus{enums.RefundStatusProcessed})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to sum refunds")
		}

		status := current.Status
		if settled >= int64(order.TotalCents) && current.Status != enums.PaymentStatusRefunded {
			status = enums.PaymentStatusRefunded
			if err := repo.UpdateStatus(ctx, payment.OrderID, status, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update payment status")
			}
		}
		return r.emitReconciled(tx, payment.OrderID, event, status, int64(order.TotalCents), settled)
	})
	if err != nil {
		return err
	}

	if settled >= int64(order.TotalCents) {
		// Fully refunded. Orders waiting on a passed quality check move to
		// refunded; cancelled orders stay cancelled.
		_, err = r.orders.MarkRefunded(ctx, payment.OrderID, systemActor())
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
			return err
		}
	}
	return nil
}

func (r *reconciler) applyRefundFailed(ctx context.Context, payment *models.Payment, event Event) error {
	if err := validateRefundEvent(event); err != nil {
		return err
	}
	return r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		current, err := repo.LockByOrderID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to lock payment")
		}
		if _, err := repo.GetRefundByProviderID(ctx, event.ProviderRefundID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				r.logg.Warn(ctx, "refund failure for unknown provider refund id")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to look up refund")
		}
		if err := repo.UpdateRefundStatus(ctx, event.ProviderRefundID, enums.RefundStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update refund status")
		}
		return r.emitReconciled(tx, payment.OrderID, event, current.Status, 0, 0)
	})
}

func (r *reconciler) emitReconciled(tx *gorm.DB, orderID uuid.UUID, event Event, status enums.PaymentStatus, paidCents, refundedCents int64) error {
	return r.outbox.Emit(tx, enums.EventPaymentReconciled, enums.AggregateOrder, orderID,
		&outbox.ActorRef{ActorID: systemActorID, Role: enums.ActorRoleWebhook},
		payloads.PaymentReconciledEvent{
			OrderID:          orderID,
			ProviderEventID:  event.ProviderEventID,
			PaymentStatus:    string(status),
			PaidCents:        paidCents,
			RefundedCents:    refundedCents,
			ProviderRefundID: event.ProviderRefundID,
		})
}

func validateRefundEvent(event Event) error {
	if event.ProviderRefundID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider refund id is required")
	}
	if event.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	return nil
}

func systemActor() orders.Actor {
	return orders.Actor{ID: systemActorID, Role: enums.ActorRoleSystem}
}

// systemActorID marks transitions driven by reconciliation rather than a
// person. A fixed id keeps the timeline attributable.
var systemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
