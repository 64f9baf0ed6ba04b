package shiprocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/craftmart/fulfillment-backend/internal/shipping"
	"github.com/craftmart/fulfillment-backend/pkg/config"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.CarrierConfig{
		BaseURL:        server.URL,
		APIToken:       "test-token",
		RequestTimeout: 2 * time.Second,
	}, logger.New(logger.Options{Output: io.Discard}))
}

func shipmentRequest() shipping.CreateShipmentRequest {
	return shipping.CreateShipmentRequest{
		OrderID:       uuid.New(),
		OrderNumber:   1042,
		PickupPincode: "560001",
		Items: []shipping.ShipmentItem{
			{ProductID: uuid.New(), Qty: 2, PriceCents: 49900},
		},
		TotalCents:  99800,
		Currency:    "INR",
		WeightGrams: 1000,
	}
}

func TestCreateShipment(t *testing.T) {
	var gotPayload createOrderPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/external/orders/create/adhoc", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(createOrderResponse{OrderID: 9001, ShipmentID: 7001, Status: "NEW"})
	}))

	booking, err := client.CreateShipment(context.Background(), shipmentRequest())
	require.NoError(t, err)
	require.Equal(t, "9001", booking.CarrierOrderID)
	require.Equal(t, "7001", booking.ShipmentID)

	require.Equal(t, "1042", gotPayload.OrderID)
	require.Equal(t, "998", gotPayload.SubTotal.String())
	require.Equal(t, "1", gotPayload.Weight.String())
	require.Len(t, gotPayload.Items, 1)
	require.Equal(t, 2, gotPayload.Items[0].Units)
	require.Equal(t, "499", gotPayload.Items[0].SellingPrice.String())
}

func TestServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.CreateShipment(context.Background(), shipmentRequest())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrierTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClientErrorIsPermanent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	_, err := client.CreateShipment(context.Background(), shipmentRequest())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrierPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestAssignCourierWithoutAWBIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(assignAWBResponse{})
	}))

	_, err := client.AssignCourier(context.Background(), "7001")
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrierTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAssignCourier(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/external/courier/assign/awb", r.URL.Path)
		var out assignAWBResponse
		out.Response.Data.AWBCode = "AWB123456"
		out.Response.Data.CourierName = "Bluedart"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))

	assignment, err := client.AssignCourier(context.Background(), "7001")
	require.NoError(t, err)
	require.Equal(t, "AWB123456", assignment.TrackingID)
	require.Equal(t, "Bluedart", assignment.CourierName)
}

func TestTrack(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/external/courier/track/awb/AWB123456", r.URL.Path)
		var out trackResponse
		out.TrackingData.ShipmentStatus = "In Transit"
		out.TrackingData.StatusActivity = "Left origin facility"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))

	update, err := client.Track(context.Background(), "AWB123456")
	require.NoError(t, err)
	require.Equal(t, "In Transit", update.Status)
}
