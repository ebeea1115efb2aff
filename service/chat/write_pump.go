package chat

import (
	"time"

	"github.com/gorilla/websocket"

	"SyncProject/logger"
)

// writePump is the only writer of rec.Conn. It sends queued frames and
// pings; when the queue is closed or a write fails it closes the socket,
// which ends the read loop.
func (s *Server) writePump(rec *WsConn) {
	ticker := time.NewTicker(s.conf.PingInterval)
	first := time.NewTimer(s.conf.FirstPingDelay)
	defer func() {
		ticker.Stop()
		first.Stop()

		_ = rec.Conn.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
		_ = rec.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = rec.Conn.Close()
		close(rec.done)
	}()

	for {
		select {
		case payload, ok := <-rec.SendChan:
			if !ok {
				return
			}
			_ = rec.Conn.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
			if err := rec.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[WS] write payload err clientId=%s err=%v", rec.ClientID, err)
				return
			}

		case <-first.C:
			if err := rec.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.conf.WriteWait)); err != nil {
				logger.Infof("[WS] first ping err clientId=%s err=%v", rec.ClientID, err)
				return
			}

		case <-ticker.C:
			if err := rec.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.conf.WriteWait)); err != nil {
				logger.Infof("[WS] ping err clientId=%s err=%v", rec.ClientID, err)
				return
			}
		}
	}
}
