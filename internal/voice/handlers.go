package voice

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// IncomingHandler answers Twilio's inbound-call webhook with TwiML that
// connects the call's media stream back to this server.
type IncomingHandler struct {
	// PublicHost overrides the request host in the stream URL; needed when
	// the relay sits behind a proxy that rewrites Host.
	PublicHost string
	Logger     zerolog.Logger
}

// Handle renders the Media Stream TwiML. Pure templating; no call state is
// kept here.
func (h IncomingHandler) Handle(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(h.PublicHost)
	if host == "" {
		host = r.Host
	}
	streamURL := "wss://" + host + StreamPath

	_ = r.ParseForm()
	h.Logger.Info().
		Str("call_sid", r.PostFormValue("CallSid")).
		Str("from", r.PostFormValue("From")).
		Str("stream_url", streamURL).
		Msg("incoming call")

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(MediaStreamTwiML(streamURL)))
}
