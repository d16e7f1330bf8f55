package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drme990/manasik-v2-sub000/internal/domain/coupon"
	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
	"github.com/drme990/manasik-v2-sub000/internal/domain/payment"
	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
	"github.com/drme990/manasik-v2-sub000/internal/gateway/paymob"
)

type checkoutStub struct {
	result *order.CheckoutResult
	err    error
	gotReq order.CheckoutRequest
}

func (s *checkoutStub) Checkout(_ context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error) {
	s.gotReq = req
	return s.result, s.err
}

type reconcilerStub struct {
	order  *order.Order
	err    error
	gotEv  order.TransactionEvent
	called int
}

func (s *reconcilerStub) Reconcile(_ context.Context, ev order.TransactionEvent) (*order.Order, error) {
	s.gotEv = ev
	s.called++
	return s.order, s.err
}

func validCheckoutBody() string {
	return `{
		"product_id": "prod-umrah",
		"quantity": 1,
		"currency": "usd",
		"full_name": "Aisha Rahman",
		"email": "aisha@example.com",
		"phone": "+201000000000",
		"country": "EG",
		"payment_option": "full",
		"agree_terms": true
	}`
}

func placedOrder() *order.Order {
	return &order.Order{
		ID:              "ord-1",
		Number:          "MNK-202508-00001",
		Status:          order.StatusProcessing,
		Currency:        "USD",
		FullAmount:      decimal.RequireFromString("1000"),
		PaidAmount:      decimal.RequireFromString("1000"),
		RemainingAmount: decimal.Zero,
	}
}

func postCheckout(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Checkout(w, req)
	return w
}

func TestCheckoutSuccess(t *testing.T) {
	svc := &checkoutStub{result: &order.CheckoutResult{
		Order:       placedOrder(),
		CheckoutURL: "https://accept.paymob.com/unifiedcheckout/?publicKey=pk&clientSecret=cs",
		IntentionID: "pi_1",
	}}
	h := NewHandler(svc, &reconcilerStub{}, "secret")

	w := postCheckout(h, validCheckoutBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "MNK-202508-00001", resp.Order.Number)
	assert.Equal(t, "1000.00", resp.Order.FullAmount)
	assert.Contains(t, resp.CheckoutURL, "unifiedcheckout")

	assert.Equal(t, payment.OptionFull, svc.gotReq.PaymentOption)
	assert.Equal(t, "usd", svc.gotReq.Currency, "normalization is the service's job")
	assert.True(t, svc.gotReq.AgreeTerms)
}

func TestCheckoutMalformedBody(t *testing.T) {
	h := NewHandler(&checkoutStub{}, &reconcilerStub{}, "secret")

	w := postCheckout(h, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"terms", order.ErrTermsNotAgreed, http.StatusBadRequest},
		{"quantity", order.ErrInvalidQuantity, http.StatusBadRequest},
		{"billing", order.ErrMissingBilling, http.StatusBadRequest},
		{"product missing", product.ErrNotFound, http.StatusNotFound},
		{"out of stock", product.ErrOutOfStock, http.StatusBadRequest},
		{"coupon missing", coupon.ErrNotFound, http.StatusNotFound},
		{"coupon inactive", coupon.ErrInactive, http.StatusBadRequest},
		{"coupon exhausted", coupon.ErrExhausted, http.StatusBadRequest},
		{"partial not allowed", payment.ErrPartialNotAllowed, http.StatusBadRequest},
		{"below minimum", &payment.BelowMinimumError{
			Requested: decimal.RequireFromString("40"),
			Minimum:   decimal.RequireFromString("50"),
		}, http.StatusBadRequest},
		{"gateway rejected", &paymob.RequestError{StatusCode: 401, Body: "nope"}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&checkoutStub{err: tt.err}, &reconcilerStub{}, "secret")

			w := postCheckout(h, validCheckoutBody())
			assert.Equal(t, tt.want, w.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func signedWebhookRequest(t *testing.T, secret string, tx paymob.Transaction) *http.Request {
	t.Helper()

	body, err := json.Marshal(paymob.Callback{Type: "TRANSACTION", Obj: tx})
	require.NoError(t, err)

	url := "/api/payments/webhook"
	if secret != "" {
		url = fmt.Sprintf("%s?hmac=%s", url, paymob.ComputeHMAC(tx, secret))
	}
	return httptest.NewRequest(http.MethodPost, url, strings.NewReader(string(body)))
}

func paidTransaction() paymob.Transaction {
	return paymob.Transaction{
		ID:          777,
		AmountCents: 92000,
		Currency:    "USD",
		Success:     true,
		Order:       paymob.TransactionOrder{ID: 987654},
		CreatedAt:   "2025-08-28T10:15:00",
		SourceData:  paymob.SourceData{Type: "card"},
	}
}

func TestWebhookAppliesTransaction(t *testing.T) {
	rec := &reconcilerStub{order: &order.Order{
		Number: "MNK-202508-00001",
		Status: order.StatusPaid,
	}}
	h := NewHandler(&checkoutStub{}, rec, "secret")

	w := httptest.NewRecorder()
	h.Webhook(w, signedWebhookRequest(t, "secret", paidTransaction()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.called)
	assert.Equal(t, "987654", rec.gotEv.GatewayOrderID)
	assert.Equal(t, "777", rec.gotEv.TransactionID)
	assert.True(t, rec.gotEv.Success)
	assert.Equal(t, "card", rec.gotEv.PaymentMethod)
	assert.NotEmpty(t, rec.gotEv.Raw)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	rec := &reconcilerStub{}
	h := NewHandler(&checkoutStub{}, rec, "secret")

	req := signedWebhookRequest(t, "wrong-secret", paidTransaction())
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, rec.called, "unverified callbacks never reach the ledger")
}

func TestWebhookUnsignedModeSkipsVerification(t *testing.T) {
	rec := &reconcilerStub{order: &order.Order{Status: order.StatusPaid}}
	h := NewHandler(&checkoutStub{}, rec, "")

	w := httptest.NewRecorder()
	h.Webhook(w, signedWebhookRequest(t, "", paidTransaction()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.called)
}

func TestWebhookIgnoresNonTransactionTypes(t *testing.T) {
	rec := &reconcilerStub{}
	h := NewHandler(&checkoutStub{}, rec, "")

	body := `{"type":"TOKEN","obj":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, rec.called)
}

func TestWebhookUnknownOrder(t *testing.T) {
	rec := &reconcilerStub{err: order.ErrNotFound}
	h := NewHandler(&checkoutStub{}, rec, "")

	w := httptest.NewRecorder()
	h.Webhook(w, signedWebhookRequest(t, "", paidTransaction()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
