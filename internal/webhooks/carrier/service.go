// Package carrier syncs carrier tracking webhooks into shipment state and
// drives the shipping leg of the order lifecycle.
package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

// trackingEvent is the normalized wire shape carriers post. Both configured
// carriers are mapped onto it by their webhook setup.
type trackingEvent struct {
	EventID     string `json:"event_id"`
	TrackingID  string `json:"awb"`
	Status      string `json:"current_status"`
	Description string `json:"description"`
	IsReturn    bool   `json:"is_return"`
}

type orderService interface {
	AdvanceShipping(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor orders.Actor) (*models.Order, error)
	MarkReturnReceived(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
}

// Service processes one carrier tracking webhook delivery.
type Service interface {
	Process(ctx context.Context, body []byte) error
	EventID(body []byte) (string, error)
}

type service struct {
	repo   shipping.Repository
	orders orderService
	logg   *logger.Logger
}

func NewService(repo shipping.Repository, orderSvc orderService, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipping repository is required")
	}
	if orderSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{repo: repo, orders: orderSvc, logg: logg}, nil
}

func (s *service) EventID(body []byte) (string, error) {
	var event trackingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.EventID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}
	return event.EventID, nil
}

func (s *service) Process(ctx context.Context, body []byte) error {
	var event trackingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}
	if event.TrackingID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking id is required")
	}

	ctx = s.logg.WithEventID(s.logg.WithTrackingID(ctx, event.TrackingID), event.EventID)

	shipment, err := s.lookupShipment(ctx, event)
	if err != nil {
		return err
	}
	if shipment == nil {
		// Unknown or stale waybill. Acknowledge so the carrier stops
		// retrying; there is no shipment to reconcile against.
		s.logg.Warn(ctx, "tracking update for unknown waybill")
		return nil
	}

	switch normalizeStatus(event.Status) {
	case "picked_up", "in_transit", "shipped":
		if err := s.repo.UpdateStatus(ctx, shipment.OrderID, enums.ShipmentStatusInTransit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update shipment status")
		}
		return s.advance(ctx, shipment.OrderID, enums.OrderStatusShipped)
	case "out_for_delivery":
		return s.repo.UpdateStatus(ctx, shipment.OrderID, enums.ShipmentStatusInTransit)
	case "delivered":
		if event.IsReturn || shipment.Status == enums.ShipmentStatusRTOCreated {
			return s.receiveReturn(ctx, shipment.OrderID)
		}
		if err := s.repo.UpdateStatus(ctx, shipment.OrderID, enums.ShipmentStatusDelivered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update shipment status")
		}
		return s.advance(ctx, shipment.OrderID, enums.OrderStatusDelivered)
	case "rto_delivered":
		return s.receiveReturn(ctx, shipment.OrderID)
	case "cancelled":
		return s.repo.UpdateStatus(ctx, shipment.OrderID, enums.ShipmentStatusCancelled)
	default:
		s.logg.Warn(s.logg.WithField(ctx, "status", event.Status), "ignoring unhandled tracking status")
		return nil
	}
}

// lookupShipment resolves the waybill against forward shipments first, then
// return RTO identifiers.
func (s *service) lookupShipment(ctx context.Context, event trackingEvent) (*models.Shipment, error) {
	shipment, err := s.repo.GetByTrackingID(ctx, event.TrackingID)
	if err == nil {
		return shipment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load shipment")
	}

	orderID, err := s.repo.GetOrderIDByRTOTrackingID(ctx, event.TrackingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load return request")
	}
	return &models.Shipment{OrderID: orderID, Status: enums.ShipmentStatusRTOCreated}, nil
}

func (s *service) advance(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) error {
	_, err := s.orders.AdvanceShipping(ctx, orderID, target, webhookActor())
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		return err
	}
	return nil
}

func (s *service) receiveReturn(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.orders.MarkReturnReceived(ctx, orderID, webhookActor())
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		return err
	}
	return nil
}

func normalizeStatus(status string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(status)), " ", "_")
}

func webhookActor() orders.Actor {
	return orders.Actor{
		ID:   uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Role: enums.ActorRoleWebhook,
	}
}
