// Package clover talks to the Clover platform: OAuth token exchange, order
// creation, line items and hosted checkout sessions.
package clover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// UpstreamError captures a non-success response from the platform. The body
// is kept for server-side logging only and is never echoed to clients.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("clover %s: status %d", e.Op, e.Status)
}

// Client is a thin REST client for the Clover platform. Credentials identify
// the OAuth app; merchant access tokens are supplied per call.
type Client struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBase      string
	HTTPClient   *http.Client
}

// NewHTTPClient builds the outbound client with tracing instrumentation and
// an overall timeout so a hung upstream cannot pin a handler indefinitely.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// TokenResult is the outcome of an authorization-code exchange.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	MerchantID  string `json:"merchant_id"`
}

// ExchangeCode swaps an authorization code for an access token via a
// form-encoded POST to the token endpoint. A response without an
// access_token field yields an empty token rather than an error.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenResult, error) {
	form := url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"code":          {code},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResult{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return TokenResult{}, fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResult{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenResult{}, &UpstreamError{Op: "token exchange", Status: resp.StatusCode, Body: string(body)}
	}

	var result TokenResult
	// tolerate missing fields: an absent access_token decodes to ""
	_ = json.Unmarshal(body, &result)
	return result, nil
}

// LineItem describes a single order line sent to the platform.
type LineItem struct {
	ItemID     string `json:"itemId,omitempty" validate:"omitempty"`
	Name       string `json:"name,omitempty"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
	Qty        int    `json:"qty" validate:"gte=1"`
}

// CreateOrder opens a new order under the merchant and returns its id.
func (c *Client) CreateOrder(ctx context.Context, merchantID, accessToken, title string) (string, error) {
	payload := map[string]any{"state": "open", "title": title}
	var out struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v3/merchants/%s/orders", url.PathEscape(merchantID))
	if err := c.postJSON(ctx, "create order", path, accessToken, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AddLineItem attaches one line to an existing order. An inventory item
// reference wins over a freeform name when both are present.
func (c *Client) AddLineItem(ctx context.Context, merchantID, accessToken, orderID string, line LineItem) error {
	payload := map[string]any{
		"price":   line.PriceCents,
		"unitQty": line.Qty,
	}
	if strings.TrimSpace(line.ItemID) != "" {
		payload["item"] = map[string]string{"id": line.ItemID}
	} else {
		payload["name"] = line.Name
	}
	path := fmt.Sprintf("/v3/merchants/%s/orders/%s/line_items", url.PathEscape(merchantID), url.PathEscape(orderID))
	return c.postJSON(ctx, "add line item", path, accessToken, payload, nil)
}

// CheckoutSession is a platform-hosted payment page for an order.
type CheckoutSession struct {
	ID   string `json:"id"`
	Href string `json:"href"`
}

// CreateCheckout opens a hosted checkout session referencing the order. The
// amount is the caller's total in cents, passed through verbatim.
func (c *Client) CreateCheckout(ctx context.Context, merchantID, accessToken, orderID string, amountCents int64, currency, redirectURL string) (CheckoutSession, error) {
	payload := map[string]any{
		"orderId":     orderID,
		"amount":      amountCents,
		"currency":    currency,
		"redirectUrl": redirectURL,
	}
	var out CheckoutSession
	path := fmt.Sprintf("/v3/merchants/%s/checkouts", url.PathEscape(merchantID))
	if err := c.postJSON(ctx, "create checkout", path, accessToken, payload, &out); err != nil {
		return CheckoutSession{}, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path, accessToken string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
