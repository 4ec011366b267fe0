package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/internal/checkout"
	"github.com/angelmondragon/vendorpay-backend/internal/settlement"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type stubCheckoutService struct {
	buyer  checkout.Buyer
	req    checkout.Request
	result *checkout.Result
	err    error
}

func (s *stubCheckoutService) Execute(_ context.Context, buyer checkout.Buyer, req checkout.Request) (*checkout.Result, error) {
	s.buyer = buyer
	s.req = req
	return s.result, s.err
}

func checkoutBody(productID uuid.UUID) string {
	return `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"shipping_method":"express"}`
}

func TestCheckoutSuccess(t *testing.T) {
	productID := uuid.New()
	svc := &stubCheckoutService{result: &checkout.Result{
		OrderID:       "ORD-1-abcdef",
		State:         settlement.StateAllSucceeded,
		Total:         decimal.RequireFromString("35"),
		OrderRecorded: true,
	}}

	req := authed(newRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(productID))), "buyer@example.com", enums.RoleBuyer)
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.buyer.Email != "buyer@example.com" || svc.buyer.UserID != testUserID {
		t.Fatalf("unexpected buyer %+v", svc.buyer)
	}
	if len(svc.req.Items) != 1 || svc.req.Items[0].ProductID != productID || svc.req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected request %+v", svc.req)
	}
	if svc.req.ShippingMethod != enums.ShippingExpress {
		t.Fatalf("expected express shipping, got %s", svc.req.ShippingMethod)
	}

	var got checkout.Result
	decodeData(t, rec, &got)
	if got.OrderID != "ORD-1-abcdef" || !got.OrderRecorded {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestCheckoutPartialSettlementCarriesDetails(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodePartialSettlement, "payment to 1 of 2 vendors failed").
		WithDetails(map[string]any{
			"orderId":       "ORD-2-abcdef",
			"paidVendors":   []string{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
			"unpaidVendors": []string{"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"},
		})}

	req := authed(newRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(uuid.New()))), "buyer@example.com", enums.RoleBuyer)
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Code != string(pkgerrors.CodePartialSettlement) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
	details, ok := apiErr.Details.(map[string]any)
	if !ok || details["orderId"] != "ORD-2-abcdef" {
		t.Fatalf("expected order id in details, got %v", apiErr.Details)
	}
}

func TestCheckoutLedgerErrorIsBadGateway(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeLedger, "transfer rejected")}
	req := authed(newRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(uuid.New()))), "buyer@example.com", enums.RoleBuyer)
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
}

func TestCheckoutRejectsEmptyCartAndMissingIdentity(t *testing.T) {
	svc := &stubCheckoutService{}

	empty := authed(newRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"items":[]}`)), "buyer@example.com", enums.RoleBuyer)
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, empty)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", rec.Code)
	}

	anon := newRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(uuid.New())))
	rec = httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, anon)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
	if svc.buyer.Email != "" {
		t.Fatalf("service must not run for rejected requests")
	}
}
