package syncclient

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/module/syncengine"
)

var (
	ErrNotLive = errors.New("simulation not live")
	ErrClosed  = errors.New("client closed")
)

type Config struct {
	URL       string
	ChannelID string
	Header    http.Header
	// Heartbeat is how often the client asks for a heartbeat; <0 disables.
	Heartbeat time.Duration
	// FrameInterval is the host redraw cadence driving Engine.Frame.
	FrameInterval time.Duration
	Engine        syncengine.Config
	Dialer        *websocket.Dialer
}

func (c *Config) norm() {
	if c.Heartbeat == 0 {
		c.Heartbeat = syncengine.DefaultHeartbeat
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = time.Second / 60
	}
	if c.Engine.Heartbeat <= 0 && c.Heartbeat > 0 {
		c.Engine.Heartbeat = c.Heartbeat
	}
	if c.Engine.Clock == nil {
		c.Engine.Clock = time.Now
	}
	if c.Engine.PositionScale == 0 {
		c.Engine.PositionScale = syncengine.DefaultPositionScale
	}
	if c.Engine.BodyAction == "" {
		c.Engine.BodyAction = syncengine.DefaultBodyAction
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Client is one channel subscription feeding a synchronization engine.
// It owns three loops: socket reads, heartbeat requests and frames.
type Client struct {
	conf   Config
	conn   *websocket.Conn
	engine *syncengine.Engine

	writeMu  sync.Mutex
	clientID atomic.Value // string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects, joins conf.ChannelID and starts the loops.
func Dial(ctx context.Context, conf Config, world syncengine.World) (*Client, error) {
	if conf.URL == "" || conf.ChannelID == "" {
		return nil, errors.New("url and channel id required")
	}
	conf.norm()
	conn, _, err := conf.Dialer.DialContext(ctx, conf.URL, conf.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", conf.URL)
	}

	c := &Client{
		conf:   conf,
		conn:   conn,
		engine: syncengine.New(world, conf.Engine),
		done:   make(chan struct{}),
	}
	c.clientID.Store("")
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.writeJSON(map[string]any{"action": "join", "channelId": conf.ChannelID}); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "join")
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.frameLoop()
	if conf.Heartbeat > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop()
	}
	return c, nil
}

func (c *Client) Engine() *syncengine.Engine { return c.engine }

// ClientID is the id from the welcome frame, empty until it arrived.
func (c *Client) ClientID() string { return c.clientID.Load().(string) }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send publishes an arbitrary message payload.
func (c *Client) Send(message any) error {
	return c.writeJSON(map[string]any{"action": "message", "message": message})
}

// AddBody publishes a body creation at world coordinates (x, y). It is
// refused unless the engine is live or sleeping.
func (c *Client) AddBody(x, y float64, color string) error {
	if !c.engine.Live() {
		return errors.WithStack(ErrNotLive)
	}
	scale := c.conf.Engine.PositionScale
	return c.Send(syncengine.BodyMessage{
		Action: c.conf.Engine.BodyAction,
		X:      math.Round(x * scale),
		Y:      math.Round(y * scale),
		Color:  color,
	})
}

// Close stops the frame and heartbeat loops and closes the connection.
// It returns after every loop has exited.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	c.wg.Wait()
	return nil
}

func (c *Client) writeJSON(v any) error {
	select {
	case <-c.done:
		return errors.WithStack(ErrClosed)
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.done)
	defer c.cancel()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Infof("[syncclient] read channel=%q err=%v", c.conf.ChannelID, err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var f channel.InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warnf("[syncclient] bad frame: %v", err)
		return
	}
	switch f.Type {
	case channel.FrameWelcome:
		var w struct {
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal(f.Data, &w); err == nil {
			c.clientID.Store(w.ClientID)
		}
	case channel.FrameHistory:
		var h channel.History
		if err := json.Unmarshal(f.Data, &h); err != nil {
			logger.Warnf("[syncclient] bad history: %v", err)
			return
		}
		c.engine.HandleHistory(h)
	case channel.FrameChannel:
		var ev channel.Event
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			logger.Warnf("[syncclient] bad event: %v", err)
			return
		}
		c.engine.HandleEvent(ev)
	case channel.FrameError:
		logger.Warnf("[syncclient] server rejected a frame: %s", f.Data)
	}
}

func (c *Client) heartbeatLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.conf.Heartbeat)
	defer t.Stop()
	periodMs := c.conf.Heartbeat.Milliseconds()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			if err := c.writeJSON(map[string]any{"action": "heartbeat", "periodMs": periodMs}); err != nil {
				return
			}
		}
	}
}

func (c *Client) frameLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.conf.FrameInterval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			c.engine.Frame(c.conf.Engine.Clock())
		}
	}
}
