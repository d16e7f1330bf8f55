package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// SourceData describes the payment instrument in a transaction callback.
type SourceData struct {
	Type    string `json:"type"`
	Pan     string `json:"pan"`
	SubType string `json:"sub_type"`
}

// TransactionOrder is the provider-side order reference in a callback.
type TransactionOrder struct {
	ID int64 `json:"id"`
}

// Transaction carries the callback fields that participate in the HMAC
// signature, plus the flags the reconciler needs. Field set is closed: the
// signature covers exactly these fields in a fixed order.
type Transaction struct {
	ID                   int64            `json:"id"`
	Pending              bool             `json:"pending"`
	AmountCents          int64            `json:"amount_cents"`
	Success              bool             `json:"success"`
	IsAuth               bool             `json:"is_auth"`
	IsCapture            bool             `json:"is_capture"`
	IsStandalonePayment  bool             `json:"is_standalone_payment"`
	IsVoided             bool             `json:"is_voided"`
	IsRefunded           bool             `json:"is_refunded"`
	Is3DSecure           bool             `json:"is_3d_secure"`
	IntegrationID        int64            `json:"integration_id"`
	HasParentTransaction bool             `json:"has_parent_transaction"`
	Order                TransactionOrder `json:"order"`
	CreatedAt            string           `json:"created_at"`
	Currency             string           `json:"currency"`
	ErrorOccured         bool             `json:"error_occured"`
	Owner                int64            `json:"owner"`
	SourceData           SourceData       `json:"source_data"`
}

// Callback is the top-level webhook envelope. Only TRANSACTION callbacks are
// reconciled; the HTTP boundary rejects other types.
type Callback struct {
	Type string      `json:"type"`
	Obj  Transaction `json:"obj"`
}

// ConcatFields assembles the signed string: field values concatenated with no
// separator, in the exact order the provider documents. Booleans render as
// "true"/"false", integers in base 10. Changing this order breaks every
// signature check.
func (t Transaction) ConcatFields() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(t.AmountCents, 10))
	b.WriteString(t.CreatedAt)
	b.WriteString(t.Currency)
	b.WriteString(strconv.FormatBool(t.ErrorOccured))
	b.WriteString(strconv.FormatBool(t.HasParentTransaction))
	b.WriteString(strconv.FormatInt(t.ID, 10))
	b.WriteString(strconv.FormatInt(t.IntegrationID, 10))
	b.WriteString(strconv.FormatBool(t.Is3DSecure))
	b.WriteString(strconv.FormatBool(t.IsAuth))
	b.WriteString(strconv.FormatBool(t.IsCapture))
	b.WriteString(strconv.FormatBool(t.IsRefunded))
	b.WriteString(strconv.FormatBool(t.IsStandalonePayment))
	b.WriteString(strconv.FormatBool(t.IsVoided))
	b.WriteString(strconv.FormatInt(t.Order.ID, 10))
	b.WriteString(strconv.FormatInt(t.Owner, 10))
	b.WriteString(strconv.FormatBool(t.Pending))
	b.WriteString(t.SourceData.Pan)
	b.WriteString(t.SourceData.SubType)
	b.WriteString(t.SourceData.Type)
	b.WriteString(strconv.FormatBool(t.Success))
	return b.String()
}

// ComputeHMAC returns the lowercase hex HMAC-SHA512 of the transaction's
// signed string under the given secret.
func ComputeHMAC(t Transaction, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(t.ConcatFields()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the transaction in
// constant time. Case of the hex digits is ignored.
func VerifySignature(t Transaction, secret, received string) bool {
	expected := ComputeHMAC(t, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(received)))
}
