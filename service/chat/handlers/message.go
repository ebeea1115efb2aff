package handlers

import (
	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/service/chat"
	"SyncProject/tools/errs"
)

// MessageHandler appends {clientId, message} to the session's channel.
// The message value is relayed as is.
type MessageHandler struct{}

func NewMessageHandler() chat.Handler { return &MessageHandler{} }

func (h *MessageHandler) Action() string { return chat.ActionMessage }

func (h *MessageHandler) Handle(ctx *chat.ChatContext, f *chat.InboundFrame, conn *chat.WsConn) error {
	ch, err := joinedChannel(ctx, conn)
	if err != nil {
		return err
	}
	ev := ch.Publish(conn.ClientID, f.Fields["message"])
	logger.Debugf("[message] clientId=%s channel=%q nonce=%d", conn.ClientID, ch.ID(), ev.Nonce)
	return nil
}

func joinedChannel(ctx *chat.ChatContext, conn *chat.WsConn) (*channel.Channel, error) {
	id := conn.ChannelID()
	if id == "" {
		return nil, errs.ErrNotJoined.WrapMsg("", "clientId", conn.ClientID)
	}
	ch, ok := ctx.S.Channels().Get(id)
	if !ok {
		return nil, errs.ErrNotJoined.WrapMsg("channel gone", "clientId", conn.ClientID, "channelId", id)
	}
	return ch, nil
}
