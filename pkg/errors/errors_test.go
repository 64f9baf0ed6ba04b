package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := New(CodeStockUnavailable, "insufficient stock for item")
	wrapped := fmt.Errorf("confirming order: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeStockUnavailable {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeCarrierTransient, cause, "create shipment")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "CARRIER_TRANSIENT: create shipment" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeStockUnavailable, http.StatusConflict, false},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false},
		{CodeRefundExceedsPaid, http.StatusUnprocessableEntity, false},
		{CodeCarrierTransient, http.StatusServiceUnavailable, true},
		{CodeCarrierPermanent, http.StatusBadGateway, false},
		{Code("UNKNOWN"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: unexpected retryable flag", tc.code)
		}
	}
}

func TestCarrierPermanentHidesProviderDetail(t *testing.T) {
	meta := MetadataFor(CodeCarrierPermanent)
	if meta.DetailsAllowed {
		t.Fatal("carrier permanent errors must not leak provider detail")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeDuplicateEvent, "event seen"))
	if !IsCode(err, CodeDuplicateEvent) {
		t.Fatal("expected duplicate event code")
	}
	if IsCode(err, CodeConflict) {
		t.Fatal("unexpected code match")
	}
	if IsCode(nil, CodeConflict) {
		t.Fatal("nil error must not match")
	}
}
