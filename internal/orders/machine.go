package orders

import "github.com/craftmart/fulfillment-backend/pkg/enums"

// allowedTransitions is the forward edge set of the order lifecycle.
// Cancellation is possible at any point before the carrier picks the
// parcel up. The return flow branches off delivered and ends in either a
// restock (quality passed, then refunded) or a terminal rejection.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusPacked, enums.OrderStatusCancelled},
	enums.OrderStatusPacked:         {enums.OrderStatusReadyForPickup, enums.OrderStatusCancelled},
	enums.OrderStatusReadyForPickup: {enums.OrderStatusPickup, enums.OrderStatusCancelled},
	enums.OrderStatusPickup:         {enums.OrderStatusShipped},
	enums.OrderStatusShipped:        {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {enums.OrderStatusReturnRequested},

	enums.OrderStatusReturnRequested: {enums.OrderStatusReturnApproved, enums.OrderStatusReturnRejected},
	enums.OrderStatusReturnApproved:  {enums.OrderStatusReturnReceived},
	enums.OrderStatusReturnReceived:  {enums.OrderStatusQualityPassed, enums.OrderStatusQualityFailed},
	enums.OrderStatusQualityPassed:   {enums.OrderStatusRefunded},

	enums.OrderStatusCancelled:      {},
	enums.OrderStatusRefunded:       {},
	enums.OrderStatusReturnRejected: {},
	enums.OrderStatusQualityFailed:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
