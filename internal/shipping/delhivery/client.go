// Package delhivery implements the shipping.Carrier interface against the
// Delhivery one-click API. Delhivery allocates the waybill at manifest time,
// so courier assignment returns the identifier captured during creation.
package delhivery

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/pkg/config"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

const providerName = "delhivery"

// Client talks to the Delhivery API.
type Client struct {
	http *resty.Client
	logg *logger.Logger

	mu       sync.Mutex
	waybills map[string]manifestResult
}

// New builds a Delhivery client from the carrier configuration.
func New(cfg config.CarrierConfig, logg *logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Authorization", "Token "+cfg.APIToken).
		SetHeader("Content-Type", "application/json")
	return &Client{
		http:     httpClient,
		logg:     logg,
		waybills: make(map[string]manifestResult),
	}
}

func (c *Client) Name() string {
	return providerName
}

type manifestResult struct {
	waybill string
	courier string
}

type shipmentPayload struct {
	ReferenceNumber string          `json:"order"`
	PickupPincode   string          `json:"pickup_location,omitempty"`
	CODAmount       decimal.Decimal `json:"cod_amount"`
	WeightKg        decimal.Decimal `json:"weight"`
	ReturnShipment  bool            `json:"is_return"`
}

type manifestResponse struct {
	Packages []struct {
		RefNum  string `json:"refnum"`
		Waybill string `json:"waybill"`
		Courier string `json:"courier_partner"`
		Status  string `json:"status"`
		Remarks string `json:"remarks"`
	} `json:"packages"`
	Success bool `json:"success"`
}

func (c *Client) CreateShipment(ctx context.Context, req shipping.CreateShipmentRequest) (*shipping.ShipmentBooking, error) {
	return c.manifest(ctx, req)
}

func (c *Client) CreateReturnShipment(ctx context.Context, req shipping.CreateShipmentRequest) (*shipping.ShipmentBooking, error) {
	req.IsReturn = true
	return c.manifest(ctx, req)
}

func (c *Client) manifest(ctx context.Context, req shipping.CreateShipmentRequest) (*shipping.ShipmentBooking, error) {
	refNum := req.OrderID.String()
	var out manifestResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"shipments": []shipmentPayload{{
				ReferenceNumber: refNum,
				PickupPincode:   req.PickupPincode,
				CODAmount:       req.TotalAmount(),
				WeightKg:        req.WeightKg(),
				ReturnShipment:  req.IsReturn,
			}},
		}).
		SetResult(&out).
		Post("/api/cmu/create.json")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	if !out.Success || len(out.Packages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCarrierPermanent, "delhivery rejected the manifest").
			WithDetails(map[string]any{"body": truncate(resp.String(), 512)})
	}
	pkg := out.Packages[0]

	c.mu.Lock()
	c.waybills[pkg.Waybill] = manifestResult{waybill: pkg.Waybill, courier: pkg.Courier}
	c.mu.Unlock()

	return &shipping.ShipmentBooking{
		CarrierOrderID: refNum,
		ShipmentID:     pkg.Waybill,
		TrackingID:     pkg.Waybill,
	}, nil
}

// AssignCourier is a manifest-time concern for Delhivery. The waybill handed
// out at creation doubles as the shipment id, so this only surfaces it.
func (c *Client) AssignCourier(_ context.Context, shipmentID string) (*shipping.CourierAssignment, error) {
	c.mu.Lock()
	cached, ok := c.waybills[shipmentID]
	c.mu.Unlock()
	courier := "Delhivery Surface"
	if ok && cached.courier != "" {
		courier = cached.courier
	}
	return &shipping.CourierAssignment{
		CourierName: courier,
		TrackingID:  shipmentID,
	}, nil
}

type pickupResponse struct {
	PickupID int64 `json:"pickup_id"`
}

func (c *Client) RequestPickup(ctx context.Context, shipmentID string) (*shipping.PickupConfirmation, error) {
	var out pickupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"waybills": []string{shipmentID}}).
		SetResult(&out).
		Post("/fm/request/new")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &shipping.PickupConfirmation{PickupToken: formatPickupToken(out.PickupID)}, nil
}

type labelResponse struct {
	Packages []struct {
		PDFDownloadLink string `json:"pdf_download_link"`
	} `json:"packages"`
}

func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (string, error) {
	var out labelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("wbns", shipmentID).
		SetResult(&out).
		Get("/api/p/packing_slip")
	if err := classify(resp, err); err != nil {
		return "", err
	}
	if len(out.Packages) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeCarrierTransient, "label not ready")
	}
	return out.Packages[0].PDFDownloadLink, nil
}

type trackResponse struct {
	ShipmentData []struct {
		Shipment struct {
			Status struct {
				Status       string `json:"Status"`
				Instructions string `json:"Instructions"`
			} `json:"Status"`
		} `json:"Shipment"`
	} `json:"ShipmentData"`
}

func (c *Client) Track(ctx context.Context, trackingID string) (*shipping.TrackingUpdate, error) {
	var out trackResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("waybill", trackingID).
		SetResult(&out).
		Get("/api/v1/packages/json")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	if len(out.ShipmentData) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCarrierPermanent, "unknown waybill").
			WithDetails(map[string]any{"trackingId": trackingID})
	}
	status := out.ShipmentData[0].Shipment.Status
	return &shipping.TrackingUpdate{
		TrackingID:  trackingID,
		Status:      status.Status,
		Description: status.Instructions,
	}, nil
}

func (c *Client) CancelShipment(ctx context.Context, carrierOrderID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"waybill": carrierOrderID, "cancellation": true}).
		Post("/api/p/edit")
	return classify(resp, err)
}

func classify(resp *resty.Response, err error) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCarrierTransient, err, "delhivery request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	code := pkgerrors.CodeCarrierPermanent
	if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
		code = pkgerrors.CodeCarrierTransient
	}
	return pkgerrors.New(code, "delhivery returned an error").
		WithDetails(map[string]any{
			"status": resp.StatusCode(),
			"body":   truncate(resp.String(), 512),
		})
}

func formatPickupToken(pickupID int64) string {
	return "PU-" + strconv.FormatInt(pickupID, 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
