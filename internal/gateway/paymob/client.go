// Package paymob integrates the Paymob payment gateway: intention creation
// for hosted checkout and HMAC verification of transaction callbacks.
package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
)

// Config holds the gateway credentials and endpoints. An empty IntegrationID
// means the gateway is not configured and checkout degrades gracefully.
type Config struct {
	BaseURL       string
	SecretKey     string
	PublicKey     string
	IntegrationID int64
	HMACSecret    string
}

// RequestError is returned for non-2xx provider responses. It carries the
// provider's status and body for diagnostics.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gateway request failed with %d: %s", e.StatusCode, e.Body)
}

var _ order.PaymentGateway = (*Client)(nil)

// Client talks to the Paymob intention API. It implements
// order.PaymentGateway.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a gateway client. The outbound call gets its own 15s timeout
// budget, independent of the inbound request deadline, and is instrumented
// with otelhttp.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Configured reports whether an integration id is present.
func (c *Client) Configured() bool {
	return c.cfg.IntegrationID != 0
}

type intentionItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Quantity int    `json:"quantity"`
}

type intentionBilling struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Country     string `json:"country"`
}

type intentionRequest struct {
	Amount           int64            `json:"amount"`
	Currency         string           `json:"currency"`
	PaymentMethods   []int64          `json:"payment_methods"`
	Items            []intentionItem  `json:"items"`
	BillingData      intentionBilling `json:"billing_data"`
	SpecialReference string           `json:"special_reference,omitempty"`
	NotificationURL  string           `json:"notification_url,omitempty"`
	RedirectionURL   string           `json:"redirection_url,omitempty"`
	Expiration       int              `json:"expiration,omitempty"`
}

type intentionResponse struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	IntentionOrderID int64  `json:"intention_order_id"`
}

// CreateIntent creates a payment intention for the given amount (in minor
// currency units) and returns the provider correlation ids plus the client
// secret for the hosted checkout redirect.
func (c *Client) CreateIntent(ctx context.Context, req order.IntentRequest) (*order.PaymentIntent, error) {
	items := make([]intentionItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = intentionItem{
			Name:     item.Name,
			Amount:   item.AmountMinor,
			Quantity: item.Quantity,
		}
	}

	first, last := splitName(req.Billing.FullName)
	payload := intentionRequest{
		Amount:         req.AmountMinor,
		Currency:       req.Currency,
		PaymentMethods: []int64{c.cfg.IntegrationID},
		Items:          items,
		BillingData: intentionBilling{
			FirstName:   first,
			LastName:    last,
			Email:       req.Billing.Email,
			PhoneNumber: req.Billing.Phone,
			Country:     req.Billing.Country,
		},
		SpecialReference: req.Reference,
		NotificationURL:  req.NotifyURL,
		RedirectionURL:   req.RedirectURL,
		Expiration:       req.ExpirySeconds,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal intention payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/intention/", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build intention request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.cfg.SecretKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call intention API")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read intention response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded intentionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, errors.Wrap(err, "decode intention response")
	}
	if decoded.ClientSecret == "" {
		return nil, errors.New("intention response missing client_secret")
	}

	return &order.PaymentIntent{
		IntentionID:    decoded.ID,
		GatewayOrderID: strconv.FormatInt(decoded.IntentionOrderID, 10),
		ClientSecret:   decoded.ClientSecret,
	}, nil
}

// CheckoutURL composes the hosted checkout redirect for a client secret.
// Pure string assembly, no network call.
func (c *Client) CheckoutURL(clientSecret string) string {
	return fmt.Sprintf("%s/unifiedcheckout/?publicKey=%s&clientSecret=%s",
		c.cfg.BaseURL, c.cfg.PublicKey, clientSecret)
}

// splitName splits a full name into the first/last pair the provider
// requires. A single token is used for both.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
