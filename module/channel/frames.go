package channel

import "encoding/json"

// Server → client frame types.
const (
	FrameWelcome = "welcome"
	FrameHistory = "history"
	FrameChannel = "channel"
	FrameError   = "error"
)

// Frame is the outbound envelope: {type, data}.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// History is the payload of the history frame sent on join.
type History struct {
	Messages      []Event `json:"messages"`
	LastHeartbeat *Event  `json:"lastHeartbeat,omitempty"`
}

type welcomeData struct {
	ClientID string `json:"clientId"`
}

func EncodeFrame(typ string, data any) ([]byte, error) {
	return json.Marshal(Frame{Type: typ, Data: data})
}

func EncodeWelcome(clientID string) ([]byte, error) {
	return EncodeFrame(FrameWelcome, welcomeData{ClientID: clientID})
}

func EncodeEvent(ev Event) ([]byte, error) {
	return EncodeFrame(FrameChannel, ev)
}

// InboundFrame is the client-side view of any server frame; Data is kept
// raw until Type is known.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
