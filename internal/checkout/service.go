// Package checkout turns a checkout request into a payable hosted link:
// create an order, attach its lines, open a checkout session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/clover-relay/internal/clover"
	"github.com/noah-isme/clover-relay/internal/common"
	"github.com/noah-isme/clover-relay/internal/obs"
)

// OrderTitle is the fixed title given to relay-created orders.
const OrderTitle = "Online order"

// Customer carries optional contact info. It is accepted for forward
// compatibility but not forwarded anywhere yet.
type Customer struct {
	Phone string `json:"phone,omitempty"`
}

// Input is the checkout request body.
type Input struct {
	MerchantID  string            `json:"merchantId" validate:"required"`
	AccessToken string            `json:"accessToken" validate:"required"`
	Lines       []clover.LineItem `json:"lines" validate:"required,dive"`
	AmountCents int64             `json:"amountCents" validate:"gt=0"`
	Customer    *Customer         `json:"customer,omitempty"`
}

// Result is returned to the caller on success.
type Result struct {
	OrderID string `json:"orderId"`
	PayURL  string `json:"payUrl"`
}

// Service orchestrates the order/checkout sequence against the platform.
type Service struct {
	Clover      *clover.Client
	Currency    string
	RedirectURL string
	Logger      zerolog.Logger
}

// Create runs the three-step sequence. Line items are attached in input
// order, one call each. The checkout amount is the caller's total verbatim;
// it is not recomputed from the lines. A failure at any step aborts the
// remaining steps with no compensation of earlier ones.
func (s *Service) Create(ctx context.Context, in Input) (Result, error) {
	orderID, err := s.Clover.CreateOrder(ctx, in.MerchantID, in.AccessToken, OrderTitle)
	if err != nil {
		return Result{}, s.upstreamFailure("create_order", in.MerchantID, err)
	}

	for i, line := range in.Lines {
		if err := s.Clover.AddLineItem(ctx, in.MerchantID, in.AccessToken, orderID, line); err != nil {
			return Result{}, s.upstreamFailure(fmt.Sprintf("line_item_%d", i), in.MerchantID, err)
		}
	}

	session, err := s.Clover.CreateCheckout(ctx, in.MerchantID, in.AccessToken, orderID, in.AmountCents, s.Currency, s.RedirectURL)
	if err != nil {
		return Result{}, s.upstreamFailure("create_checkout", in.MerchantID, err)
	}

	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("ok").Inc()
	}
	s.Logger.Info().
		Str("merchant_id", in.MerchantID).
		Str("order_id", orderID).
		Int("lines", len(in.Lines)).
		Int64("amount_cents", in.AmountCents).
		Msg("checkout created")

	return Result{OrderID: orderID, PayURL: session.Href}, nil
}

func (s *Service) upstreamFailure(step, merchantID string, err error) error {
	evt := s.Logger.Error().Err(err).Str("step", step).Str("merchant_id", merchantID)
	var upstream *clover.UpstreamError
	if errors.As(err, &upstream) {
		evt = evt.Int("upstream_status", upstream.Status).Str("upstream_body", upstream.Body)
	}
	evt.Msg("checkout step failed")
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("upstream_error").Inc()
	}
	return common.NewAppError("UPSTREAM_ERROR", "checkout failed", http.StatusInternalServerError, err)
}
