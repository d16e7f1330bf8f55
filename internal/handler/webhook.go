package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
	"github.com/drme990/manasik-v2-sub000/internal/gateway/paymob"
)

// Webhook serves POST /api/payments/webhook. The provider sends the HMAC as
// the "hmac" query parameter and retries until it gets a 2xx, so anything
// already-applied must still answer 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var cb paymob.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	if h.hmacSecret != "" {
		received := r.URL.Query().Get("hmac")
		if !paymob.VerifySignature(cb.Obj, h.hmacSecret, received) {
			zctx.From(r.Context()).Warn("Webhook signature rejected",
				zap.Int64("transaction_id", cb.Obj.ID),
				zap.Int64("gateway_order_id", cb.Obj.Order.ID),
			)
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	if cb.Type != "TRANSACTION" {
		writeError(w, http.StatusBadRequest, "unsupported callback type")
		return
	}

	tx := cb.Obj
	o, err := h.reconciler.Reconcile(r.Context(), order.TransactionEvent{
		GatewayOrderID: strconv.FormatInt(tx.Order.ID, 10),
		TransactionID:  strconv.FormatInt(tx.ID, 10),
		AmountMinor:    tx.AmountCents,
		Currency:       tx.Currency,
		Success:        tx.Success,
		Pending:        tx.Pending,
		Voided:         tx.IsVoided,
		Refunded:       tx.IsRefunded,
		PaymentMethod:  tx.SourceData.Type,
		Raw:            body,
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown order")
			return
		}
		logUnexpected(r, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   o.Number,
		"status":  string(o.Status),
	})
}
