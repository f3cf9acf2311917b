package voice

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noah-isme/clover-relay/internal/obs"
)

// Twilio Media Streams message envelope. Only the events this relay observes
// are modelled; unknown events are ignored.
type mediaMessage struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *startMessage `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
	Stop      *stopMessage  `json:"stop,omitempty"`
}

type startMessage struct {
	StreamSID string   `json:"streamSid"`
	CallSID   string   `json:"callSid"`
	Tracks    []string `json:"tracks"`
}

type mediaPayload struct {
	Track   string `json:"track"`
	Payload string `json:"payload"` // base64 encoded audio
}

type stopMessage struct {
	CallSID string `json:"callSid"`
}

// Bridge accepts Media Stream connections. Frames are received and discarded:
// the speech-backend integration is not built yet, so the bridge only keeps
// the transport contract alive (upgrade, envelope decode, close).
type Bridge struct {
	Logger   zerolog.Logger
	Upgrader websocket.Upgrader
}

// NewBridge builds a bridge whose upgrader accepts Twilio's cross-origin
// handshake.
func NewBridge(logger zerolog.Logger) *Bridge {
	return &Bridge{
		Logger: logger,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream upgrades the request and runs the receive loop until the
// stream stops or the peer disconnects. Nothing is ever written back.
func (b *Bridge) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := b.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error response
		b.Logger.Warn().Err(err).Msg("media stream upgrade failed")
		return
	}

	connID := uuid.NewString()
	logger := b.Logger.With().Str("conn_id", connID).Logger()
	logger.Info().Msg("media stream connected")
	if obs.VoiceConnectionsTotal != nil {
		obs.VoiceConnectionsTotal.Inc()
	}

	defer func() {
		_ = conn.Close()
		logger.Info().Msg("media stream closed")
	}()

	var streamSID, callSID string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("media stream read error")
			}
			return
		}

		var msg mediaMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "connected":
			logger.Debug().Msg("media stream handshake")
		case "start":
			if msg.Start != nil {
				streamSID = msg.Start.StreamSID
				callSID = msg.Start.CallSID
				logger.Info().
					Str("stream_sid", streamSID).
					Str("call_sid", callSID).
					Strs("tracks", msg.Start.Tracks).
					Msg("media stream started")
			}
		case "media":
			// received but not processed, acknowledged or forwarded
			if obs.VoiceFramesTotal != nil {
				obs.VoiceFramesTotal.Inc()
			}
		case "stop":
			logger.Info().
				Str("stream_sid", streamSID).
				Str("call_sid", callSID).
				Msg("media stream stopped")
			return
		}
	}
}
