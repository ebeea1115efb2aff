package chat

// Handler serves one inbound action.
type Handler interface {
	Action() string
	Handle(*ChatContext, *InboundFrame, *WsConn) error
}

type ChatContext struct {
	S *Server
}
