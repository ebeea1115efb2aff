package chat

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/service/metrics"
	"SyncProject/service/storage"
	"SyncProject/tools/errs"
	"SyncProject/tools/ids"
	"SyncProject/tools/safe"
)

type Conf struct {
	PingInterval   time.Duration
	FirstPingDelay time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	// ErrorFrames turns on the {type:"error"} reply to rejected frames.
	ErrorFrames bool
	SaveTimeout time.Duration
	Manager     ManagerConf
}

func (c *Conf) norm() {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.FirstPingDelay <= 0 {
		c.FirstPingDelay = 5 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 2 * time.Second
	}
}

type Options struct {
	GatewayID string
	Conf      Conf
	// Channel configures every channel; its Observer runs before Observers.
	Channel   channel.Options
	Observers []channel.Observer
	Metrics   *metrics.Collectors
	Sink      storage.SubscriptionSink
	// NewClientID defaults to snowflake ids.
	NewClientID func() string
}

// Server is the channel broadcast gateway.
type Server struct {
	gwID     string
	conf     Conf
	channels *channel.Registry
	connMgr  *ConnManager
	disp     *Dispatcher
	metrics  *metrics.Collectors
	sink     storage.SubscriptionSink
	newID    func() string
	upgrader websocket.Upgrader

	sessions sync.WaitGroup
	saveMu   sync.Mutex
}

func NewServer(opts Options) *Server {
	opts.Conf.norm()
	if opts.Sink == nil {
		opts.Sink = storage.NopSink{}
	}
	if opts.NewClientID == nil {
		opts.NewClientID = ids.GenerateString
	}

	var obs observers
	if opts.Channel.Observer != nil {
		obs = append(obs, opts.Channel.Observer)
	}
	if opts.Metrics != nil {
		obs = append(obs, opts.Metrics)
	}
	obs = append(obs, opts.Observers...)
	obs = append(obs, deliveryLogger{})
	opts.Channel.Observer = obs

	return &Server{
		gwID:     opts.GatewayID,
		conf:     opts.Conf,
		channels: channel.NewRegistry(opts.Channel),
		connMgr:  NewConnManagerWithConf(opts.Conf.Manager, opts.GatewayID),
		disp:     NewDispatcher(),
		metrics:  opts.Metrics,
		sink:     opts.Sink,
		newID:    opts.NewClientID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) GwID() string                 { return s.gwID }
func (s *Server) Disp() *Dispatcher            { return s.disp }
func (s *Server) ConnMgr() *ConnManager        { return s.connMgr }
func (s *Server) Channels() *channel.Registry  { return s.channels }
func (s *Server) Metrics() *metrics.Collectors { return s.metrics }

// OpenChannel returns the channel, creating it on first use.
func (s *Server) OpenChannel(id string) *channel.Channel {
	ch, created := s.channels.GetOrCreate(id)
	if created {
		s.metrics.SetChannels(s.channels.Len())
		logger.Infof("[chat] channel created id=%q", id)
	}
	return ch
}

// HandleWS upgrades the request and serves the session until it closes.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}
	s.serveConn(ws, c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
}

func (s *Server) serveConn(ws *websocket.Conn, xff, remote string) {
	s.sessions.Add(1)
	defer s.sessions.Done()

	rec, err := s.connMgr.Accept(s.newID(), ws, xff, remote)
	if err != nil {
		logger.Warnf("[HandleWS] accept: %v", err)
		closeQuiet(ws)
		return
	}
	s.metrics.ConnOpened()
	logger.Infof("[WS] connection open clientId=%s remote=%s", rec.ClientID, remote)

	ws.SetReadLimit(s.conf.ReadLimit)
	s.connMgr.AttachPongHandler(rec)
	safe.SafeGo("chat.writePump", func() { s.writePump(rec) })

	if frame, err := channel.EncodeWelcome(rec.ClientID); err == nil {
		if err := rec.Deliver(frame); err != nil {
			logger.Warnf("[WS] welcome clientId=%s err=%v", rec.ClientID, err)
		}
	}

	ctx := &ChatContext{S: s}
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed clientId=%s err=%v", rec.ClientID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout clientId=%s err=%v", rec.ClientID, rerr)
			} else {
				logger.Infof("[WS] read err clientId=%s err=%v", rec.ClientID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.connMgr.Heartbeat(rec.ClientID)
		s.handleFrame(ctx, rec, data)
	}

	s.disconnect(rec)
}

func (s *Server) handleFrame(ctx *ChatContext, rec *WsConn, data []byte) {
	f, err := ParseFrameJSON(data)
	if err == nil {
		err = s.disp.Dispatch(ctx, f, rec)
	}
	if err != nil {
		s.reject(rec, err, data)
	}
}

// reject logs and drops a frame; the session stays open.
func (s *Server) reject(rec *WsConn, err error, data []byte) {
	sample := data
	if len(sample) > 256 {
		sample = sample[:256]
	}
	reason := "Unknown"
	if ce, ok := errs.AsCode(err); ok {
		reason = ce.Msg
	}
	logger.Warnf("[WS] drop frame clientId=%s err=%v sample=%q len=%d", rec.ClientID, err, sample, len(data))
	s.metrics.FrameDropped(reason)

	if !s.conf.ErrorFrames {
		return
	}
	frame, ferr := BuildErrorFrame(err)
	if ferr != nil {
		return
	}
	if derr := rec.Deliver(frame); derr != nil {
		logger.Warnf("[WS] error frame clientId=%s err=%v", rec.ClientID, derr)
	}
}

// disconnect is the terminal transition of a session.
func (s *Server) disconnect(rec *WsConn) {
	if chID := rec.ChannelID(); chID != "" {
		if ch, ok := s.channels.Get(chID); ok {
			ch.Leave(rec.ClientID)
		}
	}
	s.connMgr.Remove(rec.ClientID)
	rec.closeSend()
	<-rec.Done()
	s.metrics.ConnClosed()
	logger.Infof("[WS] connection closed clientId=%s channel=%q", rec.ClientID, rec.ChannelID())
	s.saveSubs()
}

func (s *Server) saveSubs() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.conf.SaveTimeout)
	defer cancel()
	if err := s.sink.Save(ctx, s.connMgr.Snapshot()); err != nil {
		logger.Warnf("[chat] save subscriptions: %v", err)
	}
}

// Shutdown closes every session and waits for their disconnect paths.
func (s *Server) Shutdown(ctx context.Context) error {
	s.connMgr.Close()
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type observers []channel.Observer

func (o observers) OnEvent(channelID string, ev channel.Event) {
	for _, x := range o {
		x.OnEvent(channelID, ev)
	}
}

func (o observers) OnDeliveryFailure(channelID, clientID string, err error) {
	for _, x := range o {
		x.OnDeliveryFailure(channelID, clientID, err)
	}
}

type deliveryLogger struct{}

func (deliveryLogger) OnEvent(string, channel.Event) {}

func (deliveryLogger) OnDeliveryFailure(channelID, clientID string, err error) {
	logger.Warnf("[fanout] deliver channel=%q clientId=%s err=%v", channelID, clientID, err)
}
