package shipping

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/metrics"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
)

type testRunner struct {
	db *gorm.DB
}

func (r *testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// fakeCarrier counts calls per operation and pops queued errors before
// succeeding.
type fakeCarrier struct {
	name   string
	calls  map[string]int
	errors map[string][]error
}

func newFakeCarrier(name string) *fakeCarrier {
	return &fakeCarrier{
		name:   name,
		calls:  map[string]int{},
		errors: map[string][]error{},
	}
}

func (f *fakeCarrier) failNext(op string, errs ...error) {
	f.errors[op] = append(f.errors[op], errs...)
}

func (f *fakeCarrier) step(op string) error {
	f.calls[op]++
	if queue := f.errors[op]; len(queue) > 0 {
		f.errors[op] = queue[1:]
		return queue[0]
	}
	return nil
}

func (f *fakeCarrier) Name() string { return f.name }

func (f *fakeCarrier) CreateShipment(_ context.Context, _ CreateShipmentRequest) (*ShipmentBooking, error) {
	if err := f.step("create"); err != nil {
		return nil, err
	}
	return &ShipmentBooking{CarrierOrderID: "CO-1", ShipmentID: "SH-1"}, nil
}

func (f *fakeCarrier) AssignCourier(_ context.Context, shipmentID string) (*CourierAssignment, error) {
	if err := f.step("assign"); err != nil {
		return nil, err
	}
	return &CourierAssignment{CourierName: "Test Express", TrackingID: "AWB-" + shipmentID}, nil
}

func (f *fakeCarrier) RequestPickup(_ context.Context, _ string) (*PickupConfirmation, error) {
	if err := f.step("pickup"); err != nil {
		return nil, err
	}
	return &PickupConfirmation{PickupToken: "PU-1"}, nil
}

func (f *fakeCarrier) GenerateLabel(_ context.Context, _ string) (string, error) {
	if err := f.step("label"); err != nil {
		return "", err
	}
	return "https://labels.test/SH-1.pdf", nil
}

func (f *fakeCarrier) Track(_ context.Context, trackingID string) (*TrackingUpdate, error) {
	if err := f.step("track"); err != nil {
		return nil, err
	}
	return &TrackingUpdate{TrackingID: trackingID, Status: "In Transit"}, nil
}

func (f *fakeCarrier) CreateReturnShipment(_ context.Context, _ CreateShipmentRequest) (*ShipmentBooking, error) {
	if err := f.step("create_return"); err != nil {
		return nil, err
	}
	return &ShipmentBooking{CarrierOrderID: "CO-R1", ShipmentID: "SH-R1", TrackingID: "AWB-R1"}, nil
}

func (f *fakeCarrier) CancelShipment(_ context.Context, _ string) error {
	return f.step("cancel")
}

type shippingFixture struct {
	db      *gorm.DB
	carrier *fakeCarrier
	orch    *Orchestrator
}

func newShippingFixture(t *testing.T) *shippingFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:shipping_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE shipments (
			order_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			carrier_order_id TEXT,
			shipment_id TEXT,
			tracking_id TEXT UNIQUE,
			courier_name TEXT,
			label_url TEXT,
			pickup_token TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE return_requests (
			order_id TEXT PRIMARY KEY,
			reason TEXT NOT NULL,
			warehouse_id TEXT NOT NULL,
			rto_tracking_id TEXT,
			rto_shipment_id TEXT,
			refund_amount_cents INTEGER NOT NULL DEFAULT 0,
			requested_by TEXT NOT NULL,
			resolved_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE warehouses (
			id TEXT PRIMARY KEY,
			seller_id TEXT NOT NULL,
			name TEXT NOT NULL,
			pincode TEXT NOT NULL,
			total_capacity INTEGER NOT NULL DEFAULT 0,
			used_capacity INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	carrier := newFakeCarrier("shiprocket")
	registry, err := NewRegistry("shiprocket", carrier)
	require.NoError(t, err)

	outboxSvc, err := outbox.NewService(outbox.NewRepository())
	require.NoError(t, err)

	cfg := config.CarriersConfig{
		Default:        "shiprocket",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	orch, err := NewOrchestrator(cfg, registry, NewRepository(db), &testRunner{db: db}, outboxSvc,
		metrics.NewCarrierMetrics(nil), logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)

	return &shippingFixture{db: db, carrier: carrier, orch: orch}
}

func testOrder() *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:          orderID,
		OrderNumber: 42,
		Status:      enums.OrderStatusReadyForPickup,
		Currency:    "INR",
		TotalCents:  150000,
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   uuid.New(),
			SellerID:    uuid.New(),
			WarehouseID: uuid.New(),
			Qty:         2,
			PriceCents:  75000,
		}},
	}
}

func (f *shippingFixture) shipment(t *testing.T, orderID uuid.UUID) *models.Shipment {
	t.Helper()
	var shipment models.Shipment
	require.NoError(t, f.db.First(&shipment, "order_id = ?", orderID).Error)
	return &shipment
}

func TestCreateShipmentRunsFullPipeline(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()

	require.NoError(t, f.orch.CreateShipment(context.Background(), order))

	shipment := f.shipment(t, order.ID)
	require.NotNil(t, shipment.CarrierOrderID)
	require.NotNil(t, shipment.TrackingID)
	require.Equal(t, "AWB-SH-1", *shipment.TrackingID)
	require.NotNil(t, shipment.PickupToken)
	require.NotNil(t, shipment.LabelURL)
	require.Equal(t, enums.ShipmentStatusPickupScheduled, shipment.Status)

	var events int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventShipmentCreated).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestCreateShipmentReplayIsNoOp(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()

	require.NoError(t, f.orch.CreateShipment(context.Background(), order))
	require.NoError(t, f.orch.CreateShipment(context.Background(), order))

	require.Equal(t, 1, f.carrier.calls["create"])
	require.Equal(t, 1, f.carrier.calls["assign"])
	require.Equal(t, 1, f.carrier.calls["pickup"])
	require.Equal(t, 1, f.carrier.calls["label"])
}

func TestTransientFailuresAreRetried(t *testing.T) {
	f := newShippingFixture(t)
	f.carrier.failNext("create",
		pkgerrors.New(pkgerrors.CodeCarrierTransient, "gateway timeout"),
		pkgerrors.New(pkgerrors.CodeCarrierTransient, "gateway timeout"))

	require.NoError(t, f.orch.CreateShipment(context.Background(), testOrder()))
	require.Equal(t, 3, f.carrier.calls["create"])
}

func TestTransientFailuresExhaustAttempts(t *testing.T) {
	f := newShippingFixture(t)
	transient := pkgerrors.New(pkgerrors.CodeCarrierTransient, "gateway timeout")
	f.carrier.failNext("create", transient, transient, transient)

	err := f.orch.CreateShipment(context.Background(), testOrder())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrierTransient) {
		t.Fatalf("expected transient carrier error, got %v", err)
	}
	require.Equal(t, 3, f.carrier.calls["create"])
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	f := newShippingFixture(t)
	f.carrier.failNext("create", pkgerrors.New(pkgerrors.CodeCarrierPermanent, "invalid pincode"))

	err := f.orch.CreateShipment(context.Background(), testOrder())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrierPermanent) {
		t.Fatalf("expected permanent carrier error, got %v", err)
	}
	require.Equal(t, 1, f.carrier.calls["create"])
}

func TestPipelineResumesAfterPartialFailure(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()
	f.carrier.failNext("assign", pkgerrors.New(pkgerrors.CodeCarrierPermanent, "awb quota exhausted"))

	err := f.orch.CreateShipment(context.Background(), order)
	require.Error(t, err)
	require.Equal(t, 1, f.carrier.calls["create"])

	// The booked identifiers survive, so the next attempt skips creation.
	require.NoError(t, f.orch.CreateShipment(context.Background(), order))
	require.Equal(t, 1, f.carrier.calls["create"])
	require.Equal(t, 2, f.carrier.calls["assign"])

	shipment := f.shipment(t, order.ID)
	require.NotNil(t, shipment.TrackingID)
}

func TestCancelShipmentWithoutBookingIsNoOp(t *testing.T) {
	f := newShippingFixture(t)

	require.NoError(t, f.orch.CancelShipment(context.Background(), testOrder()))
	require.Zero(t, f.carrier.calls["cancel"])
}

func TestCancelBookedShipment(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()
	require.NoError(t, f.orch.CreateShipment(context.Background(), order))

	require.NoError(t, f.orch.CancelShipment(context.Background(), order))
	require.Equal(t, 1, f.carrier.calls["cancel"])
	require.Equal(t, enums.ShipmentStatusCancelled, f.shipment(t, order.ID).Status)
}

func TestCancelDeliveredShipmentRejected(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()
	require.NoError(t, f.orch.CreateShipment(context.Background(), order))
	require.NoError(t, f.db.Model(&models.Shipment{}).
		Where("order_id = ?", order.ID).
		Update("status", enums.ShipmentStatusDelivered).Error)

	err := f.orch.CancelShipment(context.Background(), order)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateReturnShipment(t *testing.T) {
	f := newShippingFixture(t)
	order := testOrder()
	require.NoError(t, f.orch.CreateShipment(context.Background(), order))

	order.ReturnRequest = &models.ReturnRequest{
		OrderID:     order.ID,
		Reason:      "damaged on arrival",
		WarehouseID: order.Items[0].WarehouseID,
		RequestedBy: order.BuyerID,
	}
	require.NoError(t, f.db.Create(order.ReturnRequest).Error)
	order.Shipment = f.shipment(t, order.ID)

	require.NoError(t, f.orch.CreateReturnShipment(context.Background(), order))

	var rr models.ReturnRequest
	require.NoError(t, f.db.First(&rr, "order_id = ?", order.ID).Error)
	require.NotNil(t, rr.RTOTrackingID)
	require.Equal(t, "AWB-R1", *rr.RTOTrackingID)
	require.Equal(t, enums.ShipmentStatusRTOCreated, f.shipment(t, order.ID).Status)

	// Replay with the RTO already recorded books nothing new.
	order.ReturnRequest = &rr
	require.NoError(t, f.orch.CreateReturnShipment(context.Background(), order))
	require.Equal(t, 1, f.carrier.calls["create_return"])
}

func TestTrackUnknownTrackingID(t *testing.T) {
	f := newShippingFixture(t)

	_, err := f.orch.Track(context.Background(), "AWB-MISSING")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
