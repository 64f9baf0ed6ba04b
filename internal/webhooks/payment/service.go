// Package payment turns raw payment provider webhook bodies into reconciler
// events. Signature verification and dedup happen at the HTTP edge; this
// service owns decoding and dispatch.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/craftmart/fulfillment-backend/internal/payments"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

// providerEvent is the wire shape posted by the payment provider.
type providerEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
	Data      struct {
		OrderID       string `json:"order_id"`
		TransactionID string `json:"transaction_id"`
		RefundID      string `json:"refund_id"`
		AmountCents   int    `json:"amount_cents"`
	} `json:"data"`
}

var knownEventTypes = map[string]struct{}{
	payments.EventPaymentAuthorized: {},
	payments.EventPaymentCaptured:   {},
	payments.EventPaymentFailed:     {},
	payments.EventRefundCreated:     {},
	payments.EventRefundProcessed:   {},
	payments.EventRefundFailed:      {},
}

// Service processes one payment provider webhook delivery.
type Service interface {
	Process(ctx context.Context, body []byte) error
	EventID(body []byte) (string, error)
}

type service struct {
	reconciler payments.Reconciler
	logg       *logger.Logger
}

func NewService(reconciler payments.Reconciler, logg *logger.Logger) (Service, error) {
	if reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{reconciler: reconciler, logg: logg}, nil
}

// EventID extracts the provider event id without processing the body. The
// HTTP edge needs it for the dedup claim before dispatch.
func (s *service) EventID(body []byte) (string, error) {
	var event providerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}
	return event.ID, nil
}

func (s *service) Process(ctx context.Context, body []byte) error {
	var event providerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}

	ctx = s.logg.WithEventID(ctx, event.ID)

	// Unknown event types are acknowledged so the provider stops
	// redelivering them.
	if _, ok := knownEventTypes[event.Type]; !ok {
		s.logg.Warn(s.logg.WithField(ctx, "type", event.Type), "ignoring unhandled payment event type")
		return nil
	}

	return s.reconciler.Apply(ctx, payments.Event{
		ProviderEventID:  event.ID,
		Type:             event.Type,
		ProviderOrderID:  event.Data.OrderID,
		TransactionID:    event.Data.TransactionID,
		ProviderRefundID: event.Data.RefundID,
		AmountCents:      event.Data.AmountCents,
		OccurredAt:       time.Unix(event.CreatedAt, 0).UTC(),
	})
}
