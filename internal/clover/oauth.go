package clover

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/clover-relay/internal/common"
	"github.com/noah-isme/clover-relay/internal/obs"
)

// DefaultTenant is the state value used when the caller does not identify itself.
const DefaultTenant = "default"

// OAuthHandler drives the authorization-code flow against the platform's
// consent and token endpoints. Tokens are never stored here; persisting the
// token/merchant association is the caller's responsibility.
type OAuthHandler struct {
	Client       *Client
	AuthorizeURL string
	RedirectURI  string
	Logger       zerolog.Logger
}

// Start redirects the browser to the platform consent page. The caller's
// tenant identifier rides along as the opaque OAuth state.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(r.URL.Query().Get("tenant"))
	if tenant == "" {
		tenant = DefaultTenant
	}

	q := url.Values{
		"client_id":     {h.Client.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {h.RedirectURI},
		"state":         {tenant},
	}
	target := h.AuthorizeURL + "?" + q.Encode()

	h.Logger.Info().Str("tenant", tenant).Msg("oauth start")
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback exchanges the authorization code for an access token. The token
// is logged truncated and returned to the browser as a confirmation only.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	merchantID := strings.TrimSpace(q.Get("merchant_id"))
	tenant := strings.TrimSpace(q.Get("state"))
	if tenant == "" {
		tenant = DefaultTenant
	}

	if code == "" || merchantID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code and merchant_id are required", nil)
		return
	}

	result, err := h.Client.ExchangeCode(r.Context(), code)
	if err != nil {
		evt := h.Logger.Error().Err(err).Str("tenant", tenant).Str("merchant_id", merchantID)
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			evt = evt.Int("upstream_status", upstream.Status).Str("upstream_body", upstream.Body)
		}
		evt.Msg("token exchange failed")
		if obs.OAuthExchangeTotal != nil {
			obs.OAuthExchangeTotal.WithLabelValues("error").Inc()
		}
		common.JSONError(w, http.StatusInternalServerError, "UPSTREAM_ERROR", "token exchange failed", nil)
		return
	}

	if result.MerchantID == "" {
		result.MerchantID = merchantID
	}

	// TODO: persist the tenant/merchant/token association to your database.
	h.Logger.Info().
		Str("tenant", tenant).
		Str("merchant_id", result.MerchantID).
		Str("token_preview", obs.TokenPreview(result.AccessToken)).
		Msg("oauth exchange complete")
	if obs.OAuthExchangeTotal != nil {
		obs.OAuthExchangeTotal.WithLabelValues("ok").Inc()
	}

	common.PlainText(w, http.StatusOK, "Clover account connected. You can close this window.")
}
