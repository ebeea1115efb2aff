package channel

import (
	"sync"
	"time"
)

const (
	DefaultMaxHistory         = 1000
	DefaultMinHeartbeatPeriod = 8 * time.Millisecond
)

// Member is one connection registered in a channel. Deliver must not
// block: it queues the frame or fails.
type Member interface {
	ID() string
	Deliver(frame []byte) error
}

// Observer sees every sequenced event, in nonce order, while the channel
// is still locked. Implementations must return quickly.
type Observer interface {
	OnEvent(channelID string, ev Event)
	OnDeliveryFailure(channelID, clientID string, err error)
}

// Options are shared by all channels of a registry.
type Options struct {
	MaxHistory         int
	MinHeartbeatPeriod time.Duration
	Clock              func() time.Time
	Observer           Observer
}

func (o *Options) norm() {
	if o.MaxHistory <= 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	if o.MinHeartbeatPeriod <= 0 {
		o.MinHeartbeatPeriod = DefaultMinHeartbeatPeriod
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Channel owns membership, bounded history and the nonce counter of one
// channel id. Every mutation goes through mu; no other lock is taken while
// it is held, so channels never contend with each other.
type Channel struct {
	id   string
	opts *Options

	mu            sync.Mutex
	members       map[string]Member
	history       []Event
	nonce         int64
	lastHeartbeat int64
}

// Stats is a point-in-time view used by the admin endpoints.
type Stats struct {
	ID            string `json:"id"`
	Members       int    `json:"members"`
	Nonce         int64  `json:"nonce"`
	HistoryLen    int    `json:"historyLen"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
}

func newChannel(id string, opts *Options) *Channel {
	return &Channel{
		id:            id,
		opts:          opts,
		members:       make(map[string]Member),
		history:       make([]Event, 0, 64),
		nonce:         1,
		lastHeartbeat: opts.Clock().UnixMilli(),
	}
}

func (c *Channel) ID() string { return c.id }

func (c *Channel) now() int64 { return c.opts.Clock().UnixMilli() }

// Join sends the history frame to m, registers it and broadcasts the
// connected event to every member including m. The history frame is queued
// on m before the connected event, so m always sees them in that order.
func (c *Channel) Join(m Member) (History, Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.historyLocked()
	if frame, err := EncodeFrame(FrameHistory, h); err == nil {
		if derr := m.Deliver(frame); derr != nil {
			c.deliveryFailedLocked(m.ID(), derr)
		}
	}

	c.members[m.ID()] = m
	ev := c.appendLocked(ActionConnected, ClientData{ClientID: m.ID()})
	return h, ev
}

// Publish appends a message event from clientID and broadcasts it.
func (c *Channel) Publish(clientID string, message any) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(ActionMessage, MessageData{ClientID: clientID, Message: message})
}

// Leave removes clientID and broadcasts the disconnected event to the
// remaining members. ok is false if clientID was not a member.
func (c *Channel) Leave(clientID string) (ev Event, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok = c.members[clientID]; !ok {
		return Event{}, false
	}
	delete(c.members, clientID)
	return c.appendLocked(ActionDisconnected, ClientData{ClientID: clientID}), true
}

// Heartbeat emits a heartbeat event if at least max(period, floor) has
// passed since the last one. Heartbeats consume a nonce but are not stored
// in history.
func (c *Channel) Heartbeat(period time.Duration) (Event, bool) {
	if period < c.opts.MinHeartbeatPeriod {
		period = c.opts.MinHeartbeatPeriod
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now-c.lastHeartbeat < period.Milliseconds() {
		return Event{}, false
	}
	c.lastHeartbeat = now
	ev := Event{
		Action:    ActionHeartbeat,
		Timestamp: now,
		Nonce:     c.nonce,
	}
	c.nonce++
	c.broadcastLocked(ev)
	return ev, true
}

// History returns what a joining client would receive right now.
func (c *Channel) History() History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyLocked()
}

func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ID:            c.id,
		Members:       len(c.members),
		Nonce:         c.nonce,
		HistoryLen:    len(c.history),
		LastHeartbeat: c.lastHeartbeat,
	}
}

// MemberIDs lists current members (unordered).
func (c *Channel) MemberIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	return out
}

// appendLocked is appendEvent: stamp, sequence, store, fan out.
func (c *Channel) appendLocked(action string, data any) Event {
	ev := Event{
		Action:    action,
		Data:      data,
		Timestamp: c.now(),
		Nonce:     c.nonce,
	}
	c.nonce++

	c.history = append(c.history, ev)
	if over := len(c.history) - c.opts.MaxHistory; over > 0 {
		// shift down in place so the backing array does not grow forever
		n := copy(c.history, c.history[over:])
		for i := n; i < len(c.history); i++ {
			c.history[i] = Event{}
		}
		c.history = c.history[:n]
	}

	c.broadcastLocked(ev)
	return ev
}

func (c *Channel) broadcastLocked(ev Event) {
	if c.opts.Observer != nil {
		c.opts.Observer.OnEvent(c.id, ev)
	}
	frame, err := EncodeEvent(ev)
	if err != nil {
		// payload came from json, so this only happens for exotic values
		for id := range c.members {
			c.deliveryFailedLocked(id, err)
		}
		return
	}
	for id, m := range c.members {
		if err := m.Deliver(frame); err != nil {
			c.deliveryFailedLocked(id, err)
		}
	}
}

func (c *Channel) deliveryFailedLocked(clientID string, err error) {
	if c.opts.Observer != nil {
		c.opts.Observer.OnDeliveryFailure(c.id, clientID, err)
	}
}

func (c *Channel) historyLocked() History {
	msgs := make([]Event, len(c.history))
	copy(msgs, c.history)
	h := History{Messages: msgs}

	// The newest event may have been a heartbeat, which history does not
	// keep; hand the client a stand-in so its sync clock starts there.
	if n := len(c.history); n > 0 && c.history[n-1].Nonce != c.nonce-1 {
		h.LastHeartbeat = &Event{
			Action:    ActionHeartbeat,
			Timestamp: c.lastHeartbeat,
			Nonce:     c.nonce - 1,
		}
	}
	return h
}
