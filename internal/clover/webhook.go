package clover

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/clover-relay/internal/common"
	"github.com/noah-isme/clover-relay/internal/obs"
)

// WebhookHandler captures platform event callbacks. Events are logged
// verbatim and acknowledged unconditionally; signature verification and
// downstream reaction are out of scope here.
type WebhookHandler struct {
	Logger zerolog.Logger
}

// Handle acknowledges any payload with 200.
func (h WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		body = nil
	}
	evt := h.Logger.Info()
	if json.Valid(body) {
		evt = evt.RawJSON("payload", body)
	} else {
		evt = evt.Bytes("payload", body)
	}
	evt.Msg("clover webhook received")
	if obs.WebhookReceivedTotal != nil {
		obs.WebhookReceivedTotal.Inc()
	}
	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
