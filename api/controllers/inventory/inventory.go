// Package inventory exposes warehouse stock operations to sellers and admins.
package inventory

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/api/middleware"
	"github.com/craftmart/fulfillment-backend/api/responses"
	"github.com/craftmart/fulfillment-backend/api/validators"
	"github.com/craftmart/fulfillment-backend/internal/inventory"
	"github.com/craftmart/fulfillment-backend/internal/ledger"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

type AdjustBody struct {
	WarehouseID uuid.UUID `json:"warehouseId" validate:"required"`
	ProductID   uuid.UUID `json:"productId" validate:"required"`
	SellerID    uuid.UUID `json:"sellerId" validate:"required"`
	Delta       int       `json:"delta" validate:"required"`
	Reason      string    `json:"reason" validate:"required,min=3,max=256"`
}

// Adjust applies a manual stock correction.
func Adjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := middleware.ActorFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		var body AdjustBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stock, err := svc.Adjust(ctx, inventory.AdjustInput{
			WarehouseID: body.WarehouseID,
			ProductID:   body.ProductID,
			SellerID:    body.SellerID,
			Delta:       body.Delta,
			Reason:      validators.SanitizeString(body.Reason, 256),
			ActorID:     actor.ID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, stock)
	}
}

type TransferBody struct {
	FromWarehouseID uuid.UUID `json:"fromWarehouseId" validate:"required"`
	ToWarehouseID   uuid.UUID `json:"toWarehouseId" validate:"required"`
	ProductID       uuid.UUID `json:"productId" validate:"required"`
	SellerID        uuid.UUID `json:"sellerId" validate:"required"`
	Qty             int       `json:"qty" validate:"required,gt=0"`
	Reason          string    `json:"reason" validate:"required,min=3,max=256"`
}

// Transfer moves unreserved stock between warehouses.
func Transfer(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := middleware.ActorFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		var body TransferBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		err := svc.Transfer(ctx, inventory.TransferInput{
			FromWarehouseID: body.FromWarehouseID,
			ToWarehouseID:   body.ToWarehouseID,
			ProductID:       body.ProductID,
			SellerID:        body.SellerID,
			Qty:             body.Qty,
			Reason:          validators.SanitizeString(body.Reason, 256),
			ActorID:         actor.ID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "transferred"})
	}
}

// WarehouseStock returns one warehouse's stock row for a product.
func WarehouseStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		warehouseID, err := validators.ParseUUIDParam(chi.URLParam(r, "warehouseID"), "warehouseID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stock, err := svc.GetWarehouseStock(ctx, warehouseID, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stock)
	}
}

// ProductStock returns the denormalized per-product aggregate.
func ProductStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stock, err := svc.GetProductStock(ctx, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stock)
	}
}

// Ledger returns the audit trail for a product, optionally scoped to one
// warehouse via the warehouseId query parameter.
func Ledger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if raw := r.URL.Query().Get("warehouseId"); raw != "" {
			warehouseID, err := validators.ParseUUIDParam(raw, "warehouseId")
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			entries, err := svc.HistoryForWarehouse(ctx, warehouseID, productID, limit)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, entries)
			return
		}

		entries, err := svc.History(ctx, productID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
