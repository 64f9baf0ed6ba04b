package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/api/middleware"
	ordersvc "github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

type stubOrders struct {
	ordersvc.Service

	created   *ordersvc.CreateOrderInput
	cancelled struct {
		orderID uuid.UUID
		reason  string
	}
	returned *ordersvc.ReturnInput
	order    *models.Order
	err      error
}

func (s *stubOrders) Create(_ context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	s.created = &input
	return s.order, s.err
}

func (s *stubOrders) Get(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) Cancel(_ context.Context, orderID uuid.UUID, reason string, _ ordersvc.Actor) (*models.Order, error) {
	s.cancelled.orderID = orderID
	s.cancelled.reason = reason
	return s.order, s.err
}

func (s *stubOrders) RequestReturn(_ context.Context, input ordersvc.ReturnInput) (*models.Order, error) {
	s.returned = &input
	return s.order, s.err
}

func actorRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	actor := ordersvc.Actor{ID: uuid.New(), Role: enums.ActorRoleSeller}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func serveWith(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(req.Method, pattern, handler)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSuccess(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}
	svc := &stubOrders{order: order}
	handler := Create(svc, nil)

	body := `{
		"buyerId": "` + uuid.NewString() + `",
		"currency": "INR",
		"providerOrderId": "prov_1",
		"lines": [{
			"productId": "` + uuid.NewString() + `",
			"sellerId": "` + uuid.NewString() + `",
			"warehouseId": "` + uuid.NewString() + `",
			"qty": 2,
			"priceCents": 4999
		}]
	}`
	resp := serveWith("/orders", handler, actorRequest(http.MethodPost, "/orders", body))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || len(svc.created.Lines) != 1 {
		t.Fatalf("service did not receive the order line")
	}
	if svc.created.Lines[0].Qty != 2 {
		t.Fatalf("unexpected qty: %d", svc.created.Lines[0].Qty)
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID {
		t.Fatalf("unexpected order id: %s", envelope.Data.ID)
	}
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc := &stubOrders{}
	handler := Create(svc, nil)

	body := `{"buyerId": "` + uuid.NewString() + `", "currency": "INR", "providerOrderId": "prov_1", "lines": []}`
	resp := serveWith("/orders", handler, actorRequest(http.MethodPost, "/orders", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.created != nil {
		t.Fatalf("service should not have been called")
	}
}

func TestCreateRequiresActor(t *testing.T) {
	handler := Create(&stubOrders{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	resp := serveWith("/orders", handler, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	handler := Get(&stubOrders{}, nil)

	resp := serveWith("/orders/{orderID}", handler, actorRequest(http.MethodGet, "/orders/not-a-uuid", ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	handler := Get(svc, nil)

	resp := serveWith("/orders/{orderID}", handler, actorRequest(http.MethodGet, "/orders/"+uuid.NewString(), ""))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCancelPassesReason(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrders{order: &models.Order{ID: orderID}}
	handler := Cancel(svc, nil)

	body := `{"reason": "buyer changed their mind"}`
	resp := serveWith("/orders/{orderID}/cancel", handler,
		actorRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.cancelled.orderID != orderID {
		t.Fatalf("unexpected order id: %s", svc.cancelled.orderID)
	}
	if svc.cancelled.reason != "buyer changed their mind" {
		t.Fatalf("unexpected reason: %q", svc.cancelled.reason)
	}
}

func TestCancelInvalidTransitionMapsTo422(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot cancel a shipped order")}
	handler := Cancel(svc, nil)

	resp := serveWith("/orders/{orderID}/cancel", handler,
		actorRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", `{"reason": "too late now"}`))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestRequestReturnMapsBody(t *testing.T) {
	orderID := uuid.New()
	warehouseID := uuid.New()
	svc := &stubOrders{order: &models.Order{ID: orderID}}
	handler := RequestReturn(svc, nil)

	body := `{"reason": "damaged on arrival", "warehouseId": "` + warehouseID.String() + `", "refundAmountCents": 4999}`
	resp := serveWith("/orders/{orderID}/return", handler,
		actorRequest(http.MethodPost, "/orders/"+orderID.String()+"/return", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.returned == nil {
		t.Fatalf("service was not called")
	}
	if svc.returned.OrderID != orderID || svc.returned.WarehouseID != warehouseID {
		t.Fatalf("return input ids not mapped")
	}
	if svc.returned.RefundAmountCents != 4999 {
		t.Fatalf("unexpected refund amount: %d", svc.returned.RefundAmountCents)
	}
}

func TestQualityCheckRequiresPassedField(t *testing.T) {
	handler := CompleteQualityCheck(&stubOrders{}, nil)

	resp := serveWith("/orders/{orderID}/quality-check", handler,
		actorRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/quality-check", `{}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
