package handlers

import (
	"strconv"
	"strings"
	"time"

	"SyncProject/service/chat"
	"SyncProject/tools/decode"
)

type heartbeatPayload struct {
	PeriodMs int64 `json:"periodMs"`
}

// HeartbeatHandler asks the channel for a heartbeat event. The channel
// rate-limits: only one heartbeat per period, and periods below the floor
// are raised to it.
type HeartbeatHandler struct{}

func NewHeartbeatHandler() chat.Handler { return &HeartbeatHandler{} }

func (h *HeartbeatHandler) Action() string { return chat.ActionHeartbeat }

func (h *HeartbeatHandler) Handle(ctx *chat.ChatContext, f *chat.InboundFrame, conn *chat.WsConn) error {
	ch, err := joinedChannel(ctx, conn)
	if err != nil {
		return err
	}
	if _, ok := ch.Heartbeat(heartbeatPeriod(f.Fields)); !ok {
		ctx.S.Metrics().HeartbeatSuppressed()
	}
	return nil
}

// heartbeatPeriod reads periodMs leniently: numbers truncate, strings use
// their leading integer ("80ms" is 80), anything else is 0 and falls to the
// channel's floor.
func heartbeatPeriod(fields map[string]any) time.Duration {
	switch v := fields["periodMs"].(type) {
	case string:
		return time.Duration(leadingInt(v)) * time.Millisecond
	case float64, int, int64:
		if p, err := decode.Decode[heartbeatPayload](fields); err == nil {
			return time.Duration(p.PeriodMs) * time.Millisecond
		}
	}
	return 0
}

func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
