package carrier

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

// fakeRepo keeps shipments and RTO waybills in maps.
type fakeRepo struct {
	shipments map[string]*models.Shipment
	rto       map[string]uuid.UUID
	statuses  map[uuid.UUID]enums.ShipmentStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		shipments: map[string]*models.Shipment{},
		rto:       map[string]uuid.UUID{},
		statuses:  map[uuid.UUID]enums.ShipmentStatus{},
	}
}

func (f *fakeRepo) WithTx(_ *gorm.DB) shipping.Repository { return f }

func (f *fakeRepo) GetByOrderID(_ context.Context, _ uuid.UUID) (*models.Shipment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetByTrackingID(_ context.Context, trackingID string) (*models.Shipment, error) {
	shipment, ok := f.shipments[trackingID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return shipment, nil
}

func (f *fakeRepo) Upsert(_ context.Context, shipment *models.Shipment) error {
	if shipment.TrackingID != nil {
		f.shipments[*shipment.TrackingID] = shipment
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status enums.ShipmentStatus) error {
	f.statuses[orderID] = status
	return nil
}

func (f *fakeRepo) UpdateReturnRTO(_ context.Context, orderID uuid.UUID, trackingID, _ string) error {
	f.rto[trackingID] = orderID
	return nil
}

func (f *fakeRepo) GetOrderIDByRTOTrackingID(_ context.Context, trackingID string) (uuid.UUID, error) {
	orderID, ok := f.rto[trackingID]
	if !ok {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return orderID, nil
}

func (f *fakeRepo) GetWarehousePincode(_ context.Context, _ uuid.UUID) (string, error) {
	return "", gorm.ErrRecordNotFound
}

type fakeOrders struct {
	advanced []enums.OrderStatus
	received int
}

func (f *fakeOrders) AdvanceShipping(_ context.Context, _ uuid.UUID, target enums.OrderStatus, _ orders.Actor) (*models.Order, error) {
	f.advanced = append(f.advanced, target)
	return &models.Order{Status: target}, nil
}

func (f *fakeOrders) MarkReturnReceived(_ context.Context, _ uuid.UUID, _ orders.Actor) (*models.Order, error) {
	f.received++
	return &models.Order{Status: enums.OrderStatusReturnReceived}, nil
}

func newTestService(t *testing.T) (Service, *fakeRepo, *fakeOrders) {
	t.Helper()
	repo := newFakeRepo()
	orderSvc := &fakeOrders{}
	svc, err := NewService(repo, orderSvc, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return svc, repo, orderSvc
}

func seedShipment(repo *fakeRepo, trackingID string, status enums.ShipmentStatus) uuid.UUID {
	orderID := uuid.New()
	tid := trackingID
	repo.shipments[trackingID] = &models.Shipment{
		OrderID:    orderID,
		Provider:   "shiprocket",
		TrackingID: &tid,
		Status:     status,
	}
	return orderID
}

func TestInTransitAdvancesOrderToShipped(t *testing.T) {
	svc, repo, orderSvc := newTestService(t)
	orderID := seedShipment(repo, "AWB1", enums.ShipmentStatusPickupScheduled)

	body := []byte(`{"event_id": "trk_1", "awb": "AWB1", "current_status": "In Transit"}`)
	require.NoError(t, svc.Process(context.Background(), body))

	require.Equal(t, enums.ShipmentStatusInTransit, repo.statuses[orderID])
	require.Equal(t, []enums.OrderStatus{enums.OrderStatusShipped}, orderSvc.advanced)
}

func TestDeliveredAdvancesOrderToDelivered(t *testing.T) {
	svc, repo, orderSvc := newTestService(t)
	orderID := seedShipment(repo, "AWB2", enums.ShipmentStatusInTransit)

	body := []byte(`{"event_id": "trk_2", "awb": "AWB2", "current_status": "Delivered"}`)
	require.NoError(t, svc.Process(context.Background(), body))

	require.Equal(t, enums.ShipmentStatusDelivered, repo.statuses[orderID])
	require.Equal(t, []enums.OrderStatus{enums.OrderStatusDelivered}, orderSvc.advanced)
}

func TestRTODeliveryMarksReturnReceived(t *testing.T) {
	svc, repo, orderSvc := newTestService(t)
	seedShipment(repo, "AWB3", enums.ShipmentStatusRTOCreated)

	body := []byte(`{"event_id": "trk_3", "awb": "AWB3", "current_status": "Delivered", "is_return": true}`)
	require.NoError(t, svc.Process(context.Background(), body))

	require.Equal(t, 1, orderSvc.received)
	require.Empty(t, orderSvc.advanced)
}

func TestRTOWaybillResolvesThroughReturnRequest(t *testing.T) {
	svc, repo, orderSvc := newTestService(t)
	repo.rto["AWB-R9"] = uuid.New()

	body := []byte(`{"event_id": "trk_4", "awb": "AWB-R9", "current_status": "rto_delivered"}`)
	require.NoError(t, svc.Process(context.Background(), body))

	require.Equal(t, 1, orderSvc.received)
}

func TestUnknownWaybillIsAcknowledged(t *testing.T) {
	svc, _, orderSvc := newTestService(t)

	body := []byte(`{"event_id": "trk_5", "awb": "AWB-GHOST", "current_status": "Delivered"}`)
	require.NoError(t, svc.Process(context.Background(), body))
	require.Empty(t, orderSvc.advanced)
	require.Zero(t, orderSvc.received)
}

func TestUnknownStatusIsAcknowledged(t *testing.T) {
	svc, repo, orderSvc := newTestService(t)
	orderID := seedShipment(repo, "AWB6", enums.ShipmentStatusInTransit)

	body := []byte(`{"event_id": "trk_6", "awb": "AWB6", "current_status": "Weather Delay"}`)
	require.NoError(t, svc.Process(context.Background(), body))

	_, touched := repo.statuses[orderID]
	require.False(t, touched)
	require.Empty(t, orderSvc.advanced)
}

func TestCancelledStatusSyncsShipment(t *testing.T) {
	svc, repo, _ := newTestService(t)
	orderID := seedShipment(repo, "AWB7", enums.ShipmentStatusCreated)

	body := []byte(`{"event_id": "trk_7", "awb": "AWB7", "current_status": "Cancelled"}`)
	require.NoError(t, svc.Process(context.Background(), body))

	require.Equal(t, enums.ShipmentStatusCancelled, repo.statuses[orderID])
}

func TestMissingTrackingIDRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Process(context.Background(), []byte(`{"event_id": "trk_8", "current_status": "Delivered"}`))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
