// Package handler exposes the checkout and webhook HTTP surface. Requests
// are decoded into domain requests here; business logic lives in the domain
// services.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
)

// Checkouter is the checkout service surface the handler consumes.
// Implemented by order.Service.
type Checkouter interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
}

// WebhookReconciler applies verified gateway callbacks. Implemented by
// order.Reconciler.
type WebhookReconciler interface {
	Reconcile(ctx context.Context, ev order.TransactionEvent) (*order.Order, error)
}

// Handler wires the HTTP routes to the checkout service and the webhook
// reconciler.
type Handler struct {
	checkout   Checkouter
	reconciler WebhookReconciler
	hmacSecret string
}

// NewHandler constructs a Handler. An empty hmacSecret disables webhook
// signature verification; the app logs loudly about that at startup.
func NewHandler(checkout Checkouter, reconciler WebhookReconciler, hmacSecret string) *Handler {
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		hmacSecret: hmacSecret,
	}
}

// Register attaches the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/payments/webhook", h.Webhook)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Success: false, Error: msg})
}

// logUnexpected records errors that surface as 5xx.
func logUnexpected(r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
