package chat

import (
	"SyncProject/module/channel"
	"SyncProject/tools/decode"
	"SyncProject/tools/errs"
)

// Client → server actions.
const (
	ActionJoin      = "join"
	ActionMessage   = "message"
	ActionHeartbeat = "heartbeat"
)

// InboundFrame is a parsed client frame: the action tag plus every field
// of the object, which handlers decode as they need.
type InboundFrame struct {
	Action string
	Fields map[string]any
}

// ParseFrameJSON accepts any JSON object with a string "action".
func ParseFrameJSON(raw []byte) (*InboundFrame, error) {
	m, err := decode.Map(raw)
	if err != nil {
		return nil, errs.ErrMalformedFrame.WrapMsg(err.Error(), "len", len(raw))
	}
	action, ok := m["action"].(string)
	if !ok || action == "" {
		return nil, errs.ErrMalformedFrame.WrapMsg("action missing", "len", len(raw))
	}
	return &InboundFrame{Action: action, Fields: m}, nil
}

// BuildErrorFrame encodes the optional error reply for err.
func BuildErrorFrame(err error) ([]byte, error) {
	ce, ok := errs.AsCode(err)
	if !ok {
		ce = errs.ErrMalformedFrame.WithDetail(err.Error())
	}
	return channel.EncodeFrame(channel.FrameError, ce)
}
