package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// trackTimeout bounds the detached purchase-tracking publish.
const trackTimeout = 10 * time.Second

// TransactionEvent is a verified, provider-neutral view of one gateway
// transaction callback. The HTTP boundary parses and signature-checks the
// provider payload before building this.
type TransactionEvent struct {
	GatewayOrderID string
	TransactionID  string
	AmountMinor    int64
	Currency       string
	Success        bool
	Pending        bool
	Voided         bool
	Refunded       bool
	PaymentMethod  string
	Raw            []byte
}

// Outcome maps the callback flags to the order status by the protocol's
// precedence: success (and neither voided nor refunded) wins, then voided,
// then refunded, then pending, else failed.
func (e TransactionEvent) Outcome() Status {
	switch {
	case e.Success && !e.Voided && !e.Refunded:
		return StatusPaid
	case e.Voided:
		return StatusCancelled
	case e.Refunded:
		return StatusRefunded
	case e.Pending:
		return StatusProcessing
	default:
		return StatusFailed
	}
}

// Tracker receives the purchase event fired on the first transition to paid.
// The reconciler invokes it off the request path under its own deadline;
// errors are logged and swallowed.
type Tracker interface {
	TrackPurchase(ctx context.Context, o *Order) error
}

// Reconciler applies gateway transaction callbacks to orders idempotently.
// Providers deliver at least once; replaying the same final outcome must be
// a no-op and the purchase-tracking side effect must fire at most once per
// order.
type Reconciler struct {
	orders  Repository
	tracker Tracker
}

// NewReconciler creates a Reconciler with the given ledger and tracking sink.
func NewReconciler(orders Repository, tracker Tracker) *Reconciler {
	return &Reconciler{orders: orders, tracker: tracker}
}

// Reconcile locates the order referenced by the event and applies the
// outcome. The write is a single forward-only statement in the repository,
// so concurrent deliveries for the same order converge on one final state.
func (r *Reconciler) Reconcile(ctx context.Context, ev TransactionEvent) (*Order, error) {
	o, err := r.orders.FindByGatewayOrderID(ctx, ev.GatewayOrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "find order for gateway order %s", ev.GatewayOrderID)
	}

	prev, curr, err := r.orders.ApplyTransaction(ctx, o.ID, TransactionUpdate{
		Status:        ev.Outcome(),
		TransactionID: ev.TransactionID,
		PaymentMethod: ev.PaymentMethod,
		RawCallback:   ev.Raw,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "apply transaction %s", ev.TransactionID)
	}

	o.Status = curr
	o.TransactionID = ev.TransactionID
	if ev.PaymentMethod != "" {
		o.PaymentMethod = ev.PaymentMethod
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("transaction_id", ev.TransactionID),
	)

	if prev == curr {
		lg.Info("Transaction replayed, order unchanged", zap.String("status", string(curr)))
		return o, nil
	}

	lg.Info("Order reconciled",
		zap.String("from", string(prev)),
		zap.String("to", string(curr)),
	)

	if curr == StatusPaid && prev != StatusPaid {
		// The provider is waiting on this ack: publish in the background,
		// detached from the request so cancellation cannot drop the event and
		// a slow broker cannot delay the response.
		snapshot := *o
		go func() {
			trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trackTimeout)
			defer cancel()
			if err := r.tracker.TrackPurchase(trackCtx, &snapshot); err != nil {
				lg.Warn("Purchase tracking failed", zap.Error(err))
			}
		}()
	}

	return o, nil
}
