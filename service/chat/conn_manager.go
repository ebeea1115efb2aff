package chat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SyncProject/logger"
	"SyncProject/service/storage"
	"SyncProject/tools/errs"
)

type ManagerConf struct {
	IdleTTL    time.Duration    // connections with no inbound traffic for this long are closed
	SweepEvery time.Duration    // sweeper period
	SendQueue  int              // per-connection outbound frames
	Clock      func() time.Time // nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 60 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// WsConn is one websocket session. It is the channel.Member for the
// session's channel.
type WsConn struct {
	ClientID string
	Conn     *websocket.Conn

	CreatedAt time.Time

	// request diagnostics, published once the session joins
	xForwardedFor string
	remoteAddress string

	mu        sync.Mutex
	channelID string
	heartbeat time.Time
	expireAt  time.Time
	closed    bool

	SendChan chan []byte
	done     chan struct{}
}

func newWsConn(clientID string, conn *websocket.Conn, xff, remote string, queue int, now time.Time, ttl time.Duration) *WsConn {
	return &WsConn{
		ClientID:      clientID,
		Conn:          conn,
		xForwardedFor: xff,
		remoteAddress: remote,
		CreatedAt:     now,
		heartbeat:     now,
		expireAt:      now.Add(ttl),
		SendChan:      make(chan []byte, queue),
		done:          make(chan struct{}),
	}
}

func (c *WsConn) ID() string { return c.ClientID }

// Deliver queues a frame for the writer goroutine. It never blocks: a full
// queue or a closed session is reported as an error and the frame is lost.
func (c *WsConn) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.ErrSessionClosed.Wrap()
	}
	select {
	case c.SendChan <- frame:
		return nil
	default:
		return errs.ErrDeliveryFailure.WrapMsg("send queue full", "clientId", c.ClientID, "queue", cap(c.SendChan))
	}
}

// BindChannel moves the session to Joined. A session joins at most once.
func (c *WsConn) BindChannel(channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelID != "" {
		return errs.ErrAlreadyJoined.WrapMsg("", "clientId", c.ClientID, "channelId", c.channelID)
	}
	c.channelID = channelID
	return nil
}

// ChannelID is empty until the session joined.
func (c *WsConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *WsConn) Subscription() storage.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelID == "" {
		return storage.Subscription{ClientID: c.ClientID}
	}
	return storage.Subscription{
		XForwardedFor: c.xForwardedFor,
		RemoteAddress: c.remoteAddress,
		ClientID:      c.ClientID,
	}
}

func (c *WsConn) touch(now time.Time, ttl time.Duration) {
	c.mu.Lock()
	c.heartbeat = now
	c.expireAt = now.Add(ttl)
	c.mu.Unlock()
}

func (c *WsConn) expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.After(c.expireAt)
}

// closeSend stops the writer. Safe to call more than once.
func (c *WsConn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.SendChan)
}

// Done is closed when the writer goroutine has exited.
func (c *WsConn) Done() <-chan struct{} { return c.done }

// ConnManager indexes live sessions by client id and closes idle ones.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	gwId     string
}

func NewConnManager(gwId string) *ConnManager {
	return NewConnManagerWithConf(ManagerConf{}, gwId)
}

func NewConnManagerWithConf(conf ManagerConf, gwId string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		bySnow: make(map[string]*WsConn),
		conf:   conf,
		gwId:   gwId,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

// Close stops the sweeper and closes every socket. The read loops see the
// close and run the normal disconnect path.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.RLock()
	conns := make([]*WsConn, 0, len(m.bySnow))
	for _, w := range m.bySnow {
		conns = append(conns, w)
	}
	m.mu.RUnlock()
	for _, w := range conns {
		closeQuiet(w.Conn)
	}
}

// Accept registers a freshly upgraded socket under a new client id.
func (m *ConnManager) Accept(clientID string, conn *websocket.Conn, xForwardedFor, remoteAddress string) (*WsConn, error) {
	if clientID == "" || conn == nil {
		return nil, errors.New("clientID/conn empty")
	}
	w := newWsConn(clientID, conn, xForwardedFor, remoteAddress, m.conf.SendQueue, m.conf.Clock(), m.conf.IdleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySnow[clientID]; exists {
		return nil, errors.New("clientID exists")
	}
	m.bySnow[clientID] = w
	return w, nil
}

func (m *ConnManager) Get(clientID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.bySnow[clientID]
	return w, ok
}

// Heartbeat refreshes the idle deadline of a session.
func (m *ConnManager) Heartbeat(clientID string) {
	m.mu.RLock()
	w, ok := m.bySnow[clientID]
	m.mu.RUnlock()
	if ok {
		w.touch(m.conf.Clock(), m.conf.IdleTTL)
	}
}

// AttachPongHandler makes pongs count as traffic.
func (m *ConnManager) AttachPongHandler(w *WsConn) {
	w.Conn.SetPongHandler(func(string) error {
		m.Heartbeat(w.ClientID)
		return nil
	})
}

// Remove unregisters a session; the socket is left to the caller.
func (m *ConnManager) Remove(clientID string) (*WsConn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.bySnow[clientID]
	if ok {
		delete(m.bySnow, clientID)
	}
	return w, ok
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// Snapshot lists the diagnostic record of every live session, ordered by
// connect time.
func (m *ConnManager) Snapshot() []storage.Subscription {
	m.mu.RLock()
	conns := make([]*WsConn, 0, len(m.bySnow))
	for _, w := range m.bySnow {
		conns = append(conns, w)
	}
	m.mu.RUnlock()
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].ClientID < conns[j].ClientID
		}
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	out := make([]storage.Subscription, len(conns))
	for i, w := range conns {
		out[i] = w.Subscription()
	}
	return out
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce(m.conf.Clock())
		}
	}
}

// sweepOnce closes expired sockets and returns how many. Sessions stay
// registered until their read loop notices and disconnects them.
func (m *ConnManager) sweepOnce(now time.Time) int {
	var expired []*WsConn
	m.mu.RLock()
	for _, w := range m.bySnow {
		if w.expired(now) {
			expired = append(expired, w)
		}
	}
	m.mu.RUnlock()

	for _, w := range expired {
		closeQuiet(w.Conn)
	}
	if len(expired) > 0 {
		logger.Infof("[ConnManager] gw=%s swept %d idle connections", m.gwId, len(expired))
	}
	return len(expired)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
