// Package ratesource implements the upstream exchange-rate provider client.
// The provider serves a flat rate document per base currency:
//
//	GET {base_url}/{BASE} -> {"result":"success","rates":{"USD":1,"EUR":0.92,...}}
package ratesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Client fetches exchange rates over HTTP. It implements currency.Source.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a rate source client with its own timeout budget, independent
// of the inbound request deadline.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type ratesDocument struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// Fetch returns the rate map for the given base currency.
func (c *Client) Fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.ToUpper(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build rate request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch rates")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("rate source returned %d: %s", resp.StatusCode, body)
	}

	var doc ratesDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode rate document")
	}
	if len(doc.Rates) == 0 {
		return nil, errors.Errorf("rate document for %s has no rates (result=%q)", base, doc.Result)
	}

	return doc.Rates, nil
}
