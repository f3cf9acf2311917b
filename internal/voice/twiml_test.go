package voice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMediaStreamTwiML(t *testing.T) {
	doc := MediaStreamTwiML("wss://relay.example/voice/stream")
	require.Contains(t, doc, `<Connect>`)
	require.Contains(t, doc, `<Stream url="wss://relay.example/voice/stream">`)
	require.Contains(t, doc, `name="direction" value="both"`)
}

func TestIncomingHandlerUsesRequestHost(t *testing.T) {
	h := IncomingHandler{Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/voice/incoming", strings.NewReader("CallSid=CA1&From=%2B15551234567"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "relay.example"
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "xml")
	require.Contains(t, rec.Body.String(), "wss://relay.example/voice/stream")
}

func TestIncomingHandlerPrefersConfiguredHost(t *testing.T) {
	h := IncomingHandler{PublicHost: "public.example", Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/voice/incoming", nil)
	req.Host = "internal:8080"
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Contains(t, rec.Body.String(), "wss://public.example/voice/stream")
}
