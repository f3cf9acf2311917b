package voice

import "fmt"

// StreamPath is the upgrade path the TwiML instructs Twilio to connect to.
const StreamPath = "/voice/stream"

// MediaStreamTwiML builds the TwiML document instructing Twilio to open a
// bidirectional Media Stream back to this server.
func MediaStreamTwiML(streamURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="direction" value="both"/>
        </Stream>
    </Connect>
</Response>`, streamURL)
}
