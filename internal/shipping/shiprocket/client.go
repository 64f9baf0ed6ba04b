// Package shiprocket implements the shipping.Carrier interface against the
// Shiprocket external API.
package shiprocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/pkg/config"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

const providerName = "shiprocket"

// Client talks to the Shiprocket external API.
type Client struct {
	http *resty.Client
	logg *logger.Logger
}

// New builds a Shiprocket client from the carrier configuration.
func New(cfg config.CarrierConfig, logg *logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetAuthToken(cfg.APIToken).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, logg: logg}
}

func (c *Client) Name() string {
	return providerName
}

type orderItemPayload struct {
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Units        int             `json:"units"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type createOrderPayload struct {
	OrderID       string             `json:"order_id"`
	PickupPincode string             `json:"pickup_postcode,omitempty"`
	SubTotal      decimal.Decimal    `json:"sub_total"`
	Weight        decimal.Decimal    `json:"weight"`
	Items         []orderItemPayload `json:"order_items"`
}

type createOrderResponse struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
}

func (c *Client) CreateShipment(ctx context.Context, req shipping.CreateShipmentRequest) (*shipping.ShipmentBooking, error) {
	var out createOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(buildOrderPayload(req)).
		SetResult(&out).
		Post("/v1/external/orders/create/adhoc")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &shipping.ShipmentBooking{
		CarrierOrderID: fmt.Sprintf("%d", out.OrderID),
		ShipmentID:     fmt.Sprintf("%d", out.ShipmentID),
	}, nil
}

type assignAWBResponse struct {
	Response struct {
		Data struct {
			AWBCode     string `json:"awb_code"`
			CourierName string `json:"courier_name"`
		} `json:"data"`
	} `json:"response"`
}

func (c *Client) AssignCourier(ctx context.Context, shipmentID string) (*shipping.CourierAssignment, error) {
	var out assignAWBResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"shipment_id": shipmentID}).
		SetResult(&out).
		Post("/v1/external/courier/assign/awb")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	if out.Response.Data.AWBCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCarrierTransient, "no awb allocated yet")
	}
	return &shipping.CourierAssignment{
		CourierName: out.Response.Data.CourierName,
		TrackingID:  out.Response.Data.AWBCode,
	}, nil
}

type pickupResponse struct {
	PickupTokenNumber string `json:"pickup_token_number"`
}

func (c *Client) RequestPickup(ctx context.Context, shipmentID string) (*shipping.PickupConfirmation, error) {
	var out pickupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"shipment_id": []string{shipmentID}}).
		SetResult(&out).
		Post("/v1/external/courier/generate/pickup")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &shipping.PickupConfirmation{PickupToken: out.PickupTokenNumber}, nil
}

type labelResponse struct {
	LabelURL string `json:"label_url"`
}

func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (string, error) {
	var out labelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"shipment_id": []string{shipmentID}}).
		SetResult(&out).
		Post("/v1/external/courier/generate/label")
	if err := classify(resp, err); err != nil {
		return "", err
	}
	return out.LabelURL, nil
}

type trackResponse struct {
	TrackingData struct {
		ShipmentStatus   string `json:"current_status"`
		StatusActivity   string `json:"current_status_body"`
		CurrentTimestamp string `json:"current_timestamp"`
	} `json:"tracking_data"`
}

func (c *Client) Track(ctx context.Context, trackingID string) (*shipping.TrackingUpdate, error) {
	var out trackResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/external/courier/track/awb/" + trackingID)
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &shipping.TrackingUpdate{
		TrackingID:  trackingID,
		Status:      out.TrackingData.ShipmentStatus,
		Description: out.TrackingData.StatusActivity,
	}, nil
}

func (c *Client) CreateReturnShipment(ctx context.Context, req shipping.CreateShipmentRequest) (*shipping.ShipmentBooking, error) {
	var out struct {
		OrderID    int64  `json:"order_id"`
		ShipmentID int64  `json:"shipment_id"`
		AWBCode    string `json:"awb_code"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(buildOrderPayload(req)).
		SetResult(&out).
		Post("/v1/external/orders/create/return")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &shipping.ShipmentBooking{
		CarrierOrderID: fmt.Sprintf("%d", out.OrderID),
		ShipmentID:     fmt.Sprintf("%d", out.ShipmentID),
		TrackingID:     out.AWBCode,
	}, nil
}

func (c *Client) CancelShipment(ctx context.Context, carrierOrderID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"ids": []string{carrierOrderID}}).
		Post("/v1/external/orders/cancel")
	return classify(resp, err)
}

func buildOrderPayload(req shipping.CreateShipmentRequest) createOrderPayload {
	items := make([]orderItemPayload, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderItemPayload{
			Name:         item.ProductID.String(),
			SKU:          item.ProductID.String(),
			Units:        item.Qty,
			SellingPrice: decimal.NewFromInt(int64(item.PriceCents)).Div(decimal.NewFromInt(100)),
		})
	}
	return createOrderPayload{
		OrderID:       fmt.Sprintf("%d", req.OrderNumber),
		PickupPincode: req.PickupPincode,
		SubTotal:      req.TotalAmount(),
		Weight:        req.WeightKg(),
		Items:         items,
	}
}

// classify maps transport and HTTP failures onto the carrier error codes the
// orchestrator retries on. Server-side and rate-limit responses are
// transient, other non-2xx responses are permanent.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCarrierTransient, err, "shiprocket request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	code := pkgerrors.CodeCarrierPermanent
	if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
		code = pkgerrors.CodeCarrierTransient
	}
	return pkgerrors.New(code, "shiprocket returned an error").
		WithDetails(map[string]any{
			"status": resp.StatusCode(),
			"body":   truncate(resp.String(), 512),
		})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
