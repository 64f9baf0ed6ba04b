package enums

import "fmt"

// ShipmentStatus tracks what the carrier believes happened to the parcel.
type ShipmentStatus string

const (
	ShipmentStatusPending         ShipmentStatus = "pending"
	ShipmentStatusCreated         ShipmentStatus = "created"
	ShipmentStatusCourierAssigned ShipmentStatus = "courier_assigned"
	ShipmentStatusPickupScheduled ShipmentStatus = "pickup_scheduled"
	ShipmentStatusInTransit       ShipmentStatus = "in_transit"
	ShipmentStatusDelivered       ShipmentStatus = "delivered"
	ShipmentStatusRTOCreated      ShipmentStatus = "rto_created"
	ShipmentStatusCancelled       ShipmentStatus = "cancelled"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusCreated,
	ShipmentStatusCourierAssigned,
	ShipmentStatusPickupScheduled,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusRTOCreated,
	ShipmentStatusCancelled,
}

func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
