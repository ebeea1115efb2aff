package channel

// Action tags carried by channel events.
const (
	ActionConnected    = "connected"
	ActionDisconnected = "disconnected"
	ActionMessage      = "message"
	ActionHeartbeat    = "heartbeat"
)

// Event is one sequenced entry of a channel. Events are immutable once
// appended; Nonce gives the total order inside a channel. Timestamp is the
// server wall clock in unix milliseconds and is only non-decreasing in the
// common case.
type Event struct {
	Action    string `json:"action"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Nonce     int64  `json:"nonce"`
}

// ClientData is the payload of connected/disconnected events.
type ClientData struct {
	ClientID string `json:"clientId"`
}

// MessageData is the payload of message events.
type MessageData struct {
	ClientID string `json:"clientId"`
	Message  any    `json:"message"`
}
