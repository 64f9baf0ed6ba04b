// Package shipping orchestrates outbound and return shipments across carrier
// integrations. Adapters translate the Carrier capability interface to one
// vendor API; the orchestrator drives the multi-step booking pipeline and
// owns retry and persistence.
package shipping

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShipmentItem is one product line handed to the carrier.
type ShipmentItem struct {
	ProductID  uuid.UUID
	Qty        int
	PriceCents int
}

// CreateShipmentRequest describes a parcel to book with a carrier. Money
// crosses the carrier boundary as rupees, weight as kilograms.
type CreateShipmentRequest struct {
	OrderID       uuid.UUID
	OrderNumber   int64
	PickupPincode string
	DropPincode   string
	Items         []ShipmentItem
	TotalCents    int
	Currency      string
	WeightGrams   int
	IsReturn      bool
}

// TotalAmount converts the integer cents total into a carrier-facing decimal.
func (r CreateShipmentRequest) TotalAmount() decimal.Decimal {
	return decimal.NewFromInt(int64(r.TotalCents)).Div(decimal.NewFromInt(100))
}

// WeightKg converts grams into the kilogram decimal the carriers bill on.
func (r CreateShipmentRequest) WeightKg() decimal.Decimal {
	return decimal.NewFromInt(int64(r.WeightGrams)).Div(decimal.NewFromInt(1000))
}

// ShipmentBooking identifies a shipment inside the carrier's system. Return
// bookings carry the RTO air waybill directly.
type ShipmentBooking struct {
	CarrierOrderID string
	ShipmentID     string
	TrackingID     string
}

// CourierAssignment is the courier and air waybill a carrier allocated.
type CourierAssignment struct {
	CourierName string
	TrackingID  string
}

// PickupConfirmation acknowledges a scheduled pickup.
type PickupConfirmation struct {
	PickupToken string
}

// TrackingUpdate is the carrier's current view of a parcel.
type TrackingUpdate struct {
	TrackingID  string
	Status      string
	Description string
}

// Carrier is the capability surface every integration adapter implements.
// Operations must be safe to retry with the same arguments.
type Carrier interface {
	Name() string
	CreateShipment(ctx context.Context, req CreateShipmentRequest) (*ShipmentBooking, error)
	AssignCourier(ctx context.Context, shipmentID string) (*CourierAssignment, error)
	RequestPickup(ctx context.Context, shipmentID string) (*PickupConfirmation, error)
	GenerateLabel(ctx context.Context, shipmentID string) (string, error)
	Track(ctx context.Context, trackingID string) (*TrackingUpdate, error)
	CreateReturnShipment(ctx context.Context, req CreateShipmentRequest) (*ShipmentBooking, error)
	CancelShipment(ctx context.Context, carrierOrderID string) error
}
