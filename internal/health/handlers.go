package health

import (
	"net/http"
	"time"

	"github.com/noah-isme/clover-relay/internal/common"
)

// Handler exposes the liveness endpoint. The relay holds no local state, so
// liveness is the only meaningful probe.
type Handler struct {
	Now func() time.Time
}

// Live reports liveness with a timestamp.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": now().UTC().Format(time.RFC3339),
	})
}
