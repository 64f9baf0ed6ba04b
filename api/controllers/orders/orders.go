// Package orders exposes the order lifecycle over HTTP. Every action
// endpoint resolves the acting user from the request context and delegates
// the transition to the orders service.
package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/api/middleware"
	"github.com/craftmart/fulfillment-backend/api/responses"
	"github.com/craftmart/fulfillment-backend/api/validators"
	"github.com/craftmart/fulfillment-backend/internal/orders"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

type CreateLineBody struct {
	ProductID   uuid.UUID `json:"productId" validate:"required"`
	SellerID    uuid.UUID `json:"sellerId" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouseId" validate:"required"`
	Qty         int       `json:"qty" validate:"required,gt=0"`
	PriceCents  int       `json:"priceCents" validate:"required,gt=0"`
}

type CreateBody struct {
	BuyerID         uuid.UUID        `json:"buyerId" validate:"required"`
	Currency        string           `json:"currency" validate:"required,min=3,max=3"`
	TaxCents        int              `json:"taxCents" validate:"min=0"`
	ShippingCents   int              `json:"shippingCents" validate:"min=0"`
	ProviderOrderID string           `json:"providerOrderId" validate:"required,max=128"`
	Lines           []CreateLineBody `json:"lines" validate:"required,min=1,dive"`
}

type ReasonBody struct {
	Reason string `json:"reason" validate:"required,min=3,max=512"`
}

type ReturnBody struct {
	Reason            string    `json:"reason" validate:"required,min=3,max=512"`
	WarehouseID       uuid.UUID `json:"warehouseId" validate:"required"`
	RefundAmountCents int       `json:"refundAmountCents" validate:"required,gt=0"`
}

type QualityCheckBody struct {
	Passed *bool `json:"passed" validate:"required"`
}

// Create places a new order and reserves stock for every line.
func Create(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := middleware.ActorFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		var body CreateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lines := make([]orders.CreateOrderLine, 0, len(body.Lines))
		for _, line := range body.Lines {
			lines = append(lines, orders.CreateOrderLine{
				ProductID:   line.ProductID,
				SellerID:    line.SellerID,
				WarehouseID: line.WarehouseID,
				Qty:         line.Qty,
				PriceCents:  line.PriceCents,
			})
		}

		order, err := svc.Create(ctx, orders.CreateOrderInput{
			BuyerID:         body.BuyerID,
			Currency:        body.Currency,
			TaxCents:        body.TaxCents,
			ShippingCents:   body.ShippingCents,
			ProviderOrderID: validators.SanitizeString(body.ProviderOrderID, 128),
			Lines:           lines,
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Get returns one order with its items, payment and shipment.
func Get(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := validators.ParseUUIDParam(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Get(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Timeline returns the ordered status history of an order.
func Timeline(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := validators.ParseUUIDParam(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, err := svc.Timeline(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// action wraps a transition endpoint: parse order id, resolve actor,
// call the service method, write the resulting order.
func action(logg *logger.Logger, fn func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := middleware.ActorFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		orderID, err := validators.ParseUUIDParam(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := fn(r, orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// StartProcessing moves a confirmed order into fulfillment.
func StartProcessing(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		return svc.StartProcessing(r.Context(), orderID, actor)
	})
}

// MarkPacked records that the order items are packed.
func MarkPacked(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		return svc.MarkPacked(r.Context(), orderID, actor)
	})
}

// MarkReadyForPickup books the carrier shipment and stages the order for
// handover.
func MarkReadyForPickup(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		return svc.MarkReadyForPickup(r.Context(), orderID, actor)
	})
}

// Cancel cancels an order that has not shipped yet.
func Cancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		var body ReasonBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Cancel(r.Context(), orderID, validators.SanitizeString(body.Reason, 512), actor)
	})
}

// RequestReturn opens a return request on a delivered order.
func RequestReturn(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		var body ReturnBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.RequestReturn(r.Context(), orders.ReturnInput{
			OrderID:           orderID,
			Reason:            validators.SanitizeString(body.Reason, 512),
			WarehouseID:       body.WarehouseID,
			RefundAmountCents: body.RefundAmountCents,
			Actor:             actor,
		})
	})
}

// ApproveReturn accepts a pending return and books the reverse shipment.
func ApproveReturn(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		return svc.ApproveReturn(r.Context(), orderID, actor)
	})
}

// RejectReturn declines a pending return, restoring the delivered state.
func RejectReturn(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		var body ReasonBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.RejectReturn(r.Context(), orderID, validators.SanitizeString(body.Reason, 512), actor)
	})
}

// MarkReturnReceived records arrival of the returned parcel at the warehouse.
func MarkReturnReceived(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		return svc.MarkReturnReceived(r.Context(), orderID, actor)
	})
}

// CompleteQualityCheck records the inspection outcome of a received return.
func CompleteQualityCheck(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return action(logg, func(r *http.Request, orderID uuid.UUID, actor orders.Actor) (any, error) {
		var body QualityCheckBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.CompleteQualityCheck(r.Context(), orderID, *body.Passed, actor)
	})
}
