package handlers

import "SyncProject/service/chat"

// RegisterAll installs the join, message and heartbeat handlers.
func RegisterAll(s *chat.Server) {
	d := s.Disp()
	d.Register(NewJoinHandler())
	d.Register(NewMessageHandler())
	d.Register(NewHeartbeatHandler())
}
