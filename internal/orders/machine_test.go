package orders

import (
	"testing"

	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

func TestCanTransitionForwardPath(t *testing.T) {
	path := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusPacked,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusPickup,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusReturnRequested,
		enums.OrderStatusReturnApproved,
		enums.OrderStatusReturnReceived,
		enums.OrderStatusQualityPassed,
		enums.OrderStatusRefunded,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCannotTransitionBackward(t *testing.T) {
	cases := [][2]enums.OrderStatus{
		{enums.OrderStatusConfirmed, enums.OrderStatusPending},
		{enums.OrderStatusShipped, enums.OrderStatusPacked},
		{enums.OrderStatusDelivered, enums.OrderStatusShipped},
		{enums.OrderStatusRefunded, enums.OrderStatusDelivered},
	}
	for _, c := range cases {
		if CanTransition(c[0], c[1]) {
			t.Errorf("expected %s -> %s to be rejected", c[0], c[1])
		}
	}
}

func TestCancelWindowClosesAtPickup(t *testing.T) {
	cancellable := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusPacked,
		enums.OrderStatusReadyForPickup,
	}
	for _, from := range cancellable {
		if !CanTransition(from, enums.OrderStatusCancelled) {
			t.Errorf("expected cancel from %s to be allowed", from)
		}
	}

	notCancellable := []enums.OrderStatus{
		enums.OrderStatusPickup,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	}
	for _, from := range notCancellable {
		if CanTransition(from, enums.OrderStatusCancelled) {
			t.Errorf("expected cancel from %s to be rejected", from)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []enums.OrderStatus{
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
		enums.OrderStatusReturnRejected,
		enums.OrderStatusQualityFailed,
	} {
		if next := allowedTransitions[terminal]; len(next) != 0 {
			t.Errorf("expected %s to be terminal, has exits %v", terminal, next)
		}
		if !terminal.IsTerminal() {
			t.Errorf("expected IsTerminal() for %s", terminal)
		}
	}
}

func TestQualityFailDoesNotReachRefund(t *testing.T) {
	if CanTransition(enums.OrderStatusQualityFailed, enums.OrderStatusRefunded) {
		t.Error("quality_failed must not transition to refunded")
	}
	if CanTransition(enums.OrderStatusReturnReceived, enums.OrderStatusRefunded) {
		t.Error("return_received must pass quality check before refund")
	}
}
