package handlers

import (
	"SyncProject/logger"
	"SyncProject/service/chat"
	"SyncProject/tools/decode"
	"SyncProject/tools/errs"
)

type joinPayload struct {
	ChannelID string `json:"channelId"`
}

// JoinHandler moves a session into its channel: history first, then
// membership, then the connected event.
type JoinHandler struct{}

func NewJoinHandler() chat.Handler { return &JoinHandler{} }

func (h *JoinHandler) Action() string { return chat.ActionJoin }

func (h *JoinHandler) Handle(ctx *chat.ChatContext, f *chat.InboundFrame, conn *chat.WsConn) error {
	// strict: a numeric channelId is not a channel name
	p, err := decode.Decode[joinPayload](f.Fields, decode.Strict())
	if err != nil {
		return errs.ErrInvalidChannel.WrapMsg(err.Error(), "clientId", conn.ClientID)
	}
	if p.ChannelID == "" {
		return errs.ErrInvalidChannel.WrapMsg("channelId required", "clientId", conn.ClientID)
	}
	if err := conn.BindChannel(p.ChannelID); err != nil {
		return err
	}

	ch := ctx.S.OpenChannel(p.ChannelID)
	hist, ev := ch.Join(conn)
	logger.Infof("[join] clientId=%s channel=%q history=%d nonce=%d", conn.ClientID, p.ChannelID, len(hist.Messages), ev.Nonce)
	return nil
}
