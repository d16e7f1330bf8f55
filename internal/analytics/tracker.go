// Package analytics publishes purchase events to Kafka for downstream
// reporting. Publishing is best-effort: the reconciler logs and ignores
// tracker errors.
package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
)

var _ order.Tracker = (*KafkaTracker)(nil)

// KafkaTracker writes one event per first-paid order, keyed by order id so
// retries for the same order land in the same partition.
type KafkaTracker struct {
	writer *kafka.Writer
}

// NewKafkaTracker builds a tracker for the given brokers and topic. The
// writer is synchronous so publish errors reach the caller; the reconciler
// runs TrackPurchase off the webhook request path with its own deadline.
func NewKafkaTracker(brokers []string, topic string) *KafkaTracker {
	return &KafkaTracker{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
			Async:        false,
		},
	}
}

// TrackPurchase encodes the paid order and publishes it.
func (t *KafkaTracker) TrackPurchase(ctx context.Context, o *order.Order) error {
	payload := encodePurchase(o)

	err := t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "write purchase event")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (t *KafkaTracker) Close() error {
	return t.writer.Close()
}

func encodePurchase(o *order.Order) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str("purchase") })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(o.ProductID) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
		e.Field("full_amount", func(e *jx.Encoder) { e.Str(o.FullAmount.String()) })
		e.Field("paid_amount", func(e *jx.Encoder) { e.Str(o.PaidAmount.String()) })
		e.Field("coupon_discount", func(e *jx.Encoder) { e.Str(o.CouponDiscount.String()) })
		if o.CouponCode != "" {
			e.Field("coupon_code", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("country", func(e *jx.Encoder) { e.Str(o.Billing.Country) })
		e.Field("tracked_at", func(e *jx.Encoder) { e.Str(time.Now().UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}

// NoopTracker discards events. Used when no brokers are configured.
type NoopTracker struct{}

func (NoopTracker) TrackPurchase(context.Context, *order.Order) error { return nil }
