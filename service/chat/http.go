package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"SyncProject/tools/errs"
)

// Routes mounts the websocket endpoint and the admin endpoints. The socket
// is served on both "/" and "/ws".
func (s *Server) Routes(r gin.IRouter) {
	r.GET("/", s.HandleWS)
	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", s.handleHealth)
	r.GET("/channels", s.handleChannels)
	r.GET("/channels/:id", s.handleChannel)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"gatewayId":   s.gwID,
		"connections": s.connMgr.Len(),
		"channels":    s.channels.Len(),
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	c.JSON(http.StatusOK, s.channels.Stats())
}

func (s *Server) handleChannel(c *gin.Context) {
	ch, ok := s.channels.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errs.ErrInvalidChannel.WithDetail("channel not found"))
		return
	}
	c.JSON(http.StatusOK, ch.Stats())
}
