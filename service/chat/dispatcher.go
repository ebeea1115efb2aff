package chat

import (
	"github.com/golang/glog"

	"SyncProject/tools/errs"
)

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register is not safe for use once the server is accepting connections.
func (d *Dispatcher) Register(h Handler) { d.handlers[h.Action()] = h }

func (d *Dispatcher) Dispatch(ctx *ChatContext, f *InboundFrame, conn *WsConn) error {
	h := d.GetHandler(f.Action)
	if h == nil {
		return errs.ErrMalformedFrame.WrapMsg("unknown action", "action", f.Action)
	}
	return h.Handle(ctx, f, conn)
}

func (d *Dispatcher) GetHandler(action string) Handler {
	h, ok := d.handlers[action]
	if !ok {
		glog.Infof("no handler for action=%q", action)
		return nil
	}
	return h
}
