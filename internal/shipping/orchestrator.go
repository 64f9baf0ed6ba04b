package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/metrics"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

// Per-item weight estimate used until products carry real dimensions.
const defaultItemWeightGrams = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Orchestrator drives the booking pipeline against a carrier: create the
// shipment, assign a courier, schedule pickup and generate the label. Each
// step persists its identifiers before the next one runs, so a crashed or
// retried booking resumes where it stopped instead of double-booking.
type Orchestrator struct {
	registry *Registry
	repo     Repository
	runner   txRunner
	outbox   outbox.Service
	metrics  *metrics.CarrierMetrics
	logg     *logger.Logger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewOrchestrator wires the shipment orchestrator.
func NewOrchestrator(cfg config.CarriersConfig, registry *Registry, repo Repository, runner txRunner, outboxSvc outbox.Service, carrierMetrics *metrics.CarrierMetrics, logg *logger.Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "carrier registry is required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipping repository is required")
	}
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 250 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}
	return &Orchestrator{
		registry:       registry,
		repo:           repo,
		runner:         runner,
		outbox:         outboxSvc,
		metrics:        carrierMetrics,
		logg:           logg,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

// CreateShipment books the order's parcel with the configured carrier.
// Calling it again for an order that already holds a tracking id is a no-op.
func (o *Orchestrator) CreateShipment(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = o.logg.WithOrderID(ctx, order.ID.String())

	shipment, err := o.loadOrInitShipment(ctx, order)
	if err != nil {
		return err
	}
	carrier, err := o.registry.Resolve(shipment.Provider)
	if err != nil {
		return err
	}
	req, err := o.buildRequest(ctx, order, false)
	if err != nil {
		return err
	}

	if shipment.CarrierOrderID == nil {
		var booking *ShipmentBooking
		err := o.callCarrier(ctx, carrier.Name(), "create_shipment", func(ctx context.Context) error {
			var callErr error
			booking, callErr = carrier.CreateShipment(ctx, req)
			return callErr
		})
		if err != nil {
			return err
		}
		shipment.CarrierOrderID = &booking.CarrierOrderID
		shipment.ShipmentID = &booking.ShipmentID
		shipment.Status = enums.ShipmentStatusCreated
		if err := o.repo.Upsert(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist shipment booking")
		}
	}

	if shipment.TrackingID == nil {
		var assignment *CourierAssignment
		err := o.callCarrier(ctx, carrier.Name(), "assign_courier", func(ctx context.Context) error {
			var callErr error
			assignment, callErr = carrier.AssignCourier(ctx, *shipment.ShipmentID)
			return callErr
		})
		if err != nil {
			return err
		}
		shipment.TrackingID = &assignment.TrackingID
		shipment.CourierName = &assignment.CourierName
		shipment.Status = enums.ShipmentStatusCourierAssigned

		// Tracking id assignment is the moment a shipment becomes real to
		// downstream consumers, so the row and the event commit together.
		err = o.runner.WithTx(ctx, func(tx *gorm.DB) error {
			if err := o.repo.WithTx(tx).Upsert(ctx, shipment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist courier assignment")
			}
			return o.emitShipmentCreated(tx, order.ID, shipment, false)
		})
		if err != nil {
			return err
		}
		o.logg.Info(o.logg.WithTrackingID(ctx, assignment.TrackingID), "shipment booked")
	}

	if shipment.PickupToken == nil {
		var pickup *PickupConfirmation
		err := o.callCarrier(ctx, carrier.Name(), "request_pickup", func(ctx context.Context) error {
			var callErr error
			pickup, callErr = carrier.RequestPickup(ctx, *shipment.ShipmentID)
			return callErr
		})
		if err != nil {
			return err
		}
		shipment.PickupToken = &pickup.PickupToken
		shipment.Status = enums.ShipmentStatusPickupScheduled
		if err := o.repo.Upsert(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist pickup confirmation")
		}
	}

	if shipment.LabelURL == nil {
		var labelURL string
		err := o.callCarrier(ctx, carrier.Name(), "generate_label", func(ctx context.Context) error {
			var callErr error
			labelURL, callErr = carrier.GenerateLabel(ctx, *shipment.ShipmentID)
			return callErr
		})
		if err != nil {
			return err
		}
		shipment.LabelURL = &labelURL
		if err := o.repo.Upsert(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist label url")
		}
	}

	return nil
}

// CreateReturnShipment books the reverse pickup for an approved return.
// Idempotent on the return request's RTO tracking id.
func (o *Orchestrator) CreateReturnShipment(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.ReturnRequest == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has no return request")
	}
	if order.ReturnRequest.RTOTrackingID != nil {
		return nil
	}
	ctx = o.logg.WithOrderID(ctx, order.ID.String())

	provider := ""
	if order.Shipment != nil {
		provider = order.Shipment.Provider
	}
	carrier, err := o.registry.Resolve(provider)
	if err != nil {
		return err
	}
	req, err := o.buildRequest(ctx, order, true)
	if err != nil {
		return err
	}

	var booking *ShipmentBooking
	err = o.callCarrier(ctx, carrier.Name(), "create_return", func(ctx context.Context) error {
		var callErr error
		booking, callErr = carrier.CreateReturnShipment(ctx, req)
		return callErr
	})
	if err != nil {
		return err
	}

	return o.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.repo.WithTx(tx)
		if err := repo.UpdateReturnRTO(ctx, order.ID, booking.TrackingID, booking.ShipmentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist rto identifiers")
		}
		if order.Shipment != nil {
			if err := repo.UpdateStatus(ctx, order.ID, enums.ShipmentStatusRTOCreated); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update shipment status")
			}
		}
		returnShipment := &models.Shipment{
			OrderID:     order.ID,
			Provider:    carrier.Name(),
			TrackingID:  &booking.TrackingID,
			CourierName: nil,
		}
		return o.emitShipmentCreated(tx, order.ID, returnShipment, true)
	})
}

// CancelShipment voids the carrier booking for a cancelled order. Orders
// cancelled before booking have nothing to void.
func (o *Orchestrator) CancelShipment(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	shipment, err := o.repo.GetByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load shipment")
	}
	if shipment.CarrierOrderID == nil || shipment.Status == enums.ShipmentStatusCancelled {
		return nil
	}
	if shipment.Status == enums.ShipmentStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeConflict, "delivered shipment cannot be cancelled")
	}

	carrier, err := o.registry.Resolve(shipment.Provider)
	if err != nil {
		return err
	}
	err = o.callCarrier(ctx, carrier.Name(), "cancel_shipment", func(ctx context.Context) error {
		return carrier.CancelShipment(ctx, *shipment.CarrierOrderID)
	})
	if err != nil {
		return err
	}
	return o.repo.UpdateStatus(ctx, order.ID, enums.ShipmentStatusCancelled)
}

// Track fetches the carrier's current view of the parcel.
func (o *Orchestrator) Track(ctx context.Context, trackingID string) (*TrackingUpdate, error) {
	if trackingID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking id is required")
	}
	shipment, err := o.repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shipment for tracking id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load shipment")
	}
	carrier, err := o.registry.Resolve(shipment.Provider)
	if err != nil {
		return nil, err
	}
	var update *TrackingUpdate
	err = o.callCarrier(ctx, carrier.Name(), "track", func(ctx context.Context) error {
		var callErr error
		update, callErr = carrier.Track(ctx, trackingID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}

func (o *Orchestrator) loadOrInitShipment(ctx context.Context, order *models.Order) (*models.Shipment, error) {
	shipment, err := o.repo.GetByOrderID(ctx, order.ID)
	if err == nil {
		return shipment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load shipment")
	}
	return &models.Shipment{
		OrderID:  order.ID,
		Provider: o.registry.Default().Name(),
		Status:   enums.ShipmentStatusPending,
	}, nil
}

func (o *Orchestrator) buildRequest(ctx context.Context, order *models.Order, isReturn bool) (CreateShipmentRequest, error) {
	if len(order.Items) == 0 {
		return CreateShipmentRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	items := make([]ShipmentItem, 0, len(order.Items))
	weightGrams := 0
	for _, item := range order.Items {
		items = append(items, ShipmentItem{
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceCents: item.PriceCents,
		})
		weightGrams += item.Qty * defaultItemWeightGrams
	}

	// All items of one order ship from one warehouse.
	pincode, err := o.repo.GetWarehousePincode(ctx, order.Items[0].WarehouseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return CreateShipmentRequest{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load warehouse pincode")
	}

	return CreateShipmentRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PickupPincode: pincode,
		Items:         items,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		WeightGrams:   weightGrams,
		IsReturn:      isReturn,
	}, nil
}

// callCarrier runs one carrier operation under the bounded exponential
// backoff policy. Only transient failures are retried.
func (o *Orchestrator) callCarrier(ctx context.Context, carrierName, operation string, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(o.initialBackoff)
	backoff = retry.WithCappedDuration(o.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(o.maxAttempts-1), backoff)

	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}
		if pkgerrors.IsCode(callErr, pkgerrors.CodeCarrierTransient) {
			o.metrics.IncRetry(carrierName, operation)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	o.metrics.ObserveDuration(carrierName, operation, time.Since(start))
	if err != nil {
		o.metrics.IncFailure(carrierName, operation)
		o.logg.Error(ctx, "carrier call failed", err)
	}
	return err
}

func (o *Orchestrator) emitShipmentCreated(tx *gorm.DB, orderID uuid.UUID, shipment *models.Shipment, isReturn bool) error {
	courierName := ""
	if shipment.CourierName != nil {
		courierName = *shipment.CourierName
	}
	trackingID := ""
	if shipment.TrackingID != nil {
		trackingID = *shipment.TrackingID
	}
	return o.outbox.Emit(tx, enums.EventShipmentCreated, enums.AggregateShipment, orderID,
		&outbox.ActorRef{ActorID: uuid.Nil, Role: enums.ActorRoleSystem},
		payloads.ShipmentCreatedEvent{
			OrderID:     orderID,
			TrackingID:  trackingID,
			CourierName: courierName,
			Carrier:     shipment.Provider,
			IsReturn:    isReturn,
			CreatedAt:   time.Now().UTC(),
		})
}
