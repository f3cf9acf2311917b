package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLiveReturnsOkWithTimestamp(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := Handler{Now: func() time.Time { return fixed }}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Live(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		OK bool   `json:"ok"`
		TS string `json:"ts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.OK)
	require.Equal(t, "2025-06-01T12:00:00Z", body.TS)
}
