package syncengine

import (
	"sync"
	"sync/atomic"
	"time"

	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/tools/decode"
	"SyncProject/tools/safe"
)

const (
	DefaultTick             = 16 * time.Millisecond
	DefaultMaxStepsPerFrame = 300
	DefaultHeartbeat        = DefaultTick * 5
	DefaultSleepAfter       = 15 * time.Second
	DefaultBodyAction       = "addBody"
	DefaultPositionScale    = 100000
)

// Config tunes an Engine. Zero values take the defaults above.
type Config struct {
	Tick             time.Duration
	MaxStepsPerFrame int
	// Heartbeat is the interval clients ask the server to heartbeat at; the
	// catch-up threshold is twice this value.
	Heartbeat  time.Duration
	SleepAfter time.Duration
	// BodyAction is the message action that creates a body.
	BodyAction    string
	PositionScale float64
	Clock         func() time.Time
	// OnStatus is called whenever the status text changes.
	OnStatus func(status string)
}

func (c *Config) norm() {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.MaxStepsPerFrame <= 0 {
		c.MaxStepsPerFrame = DefaultMaxStepsPerFrame
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeat
	}
	if c.SleepAfter <= 0 {
		c.SleepAfter = DefaultSleepAfter
	}
	if c.BodyAction == "" {
		c.BodyAction = DefaultBodyAction
	}
	if c.PositionScale == 0 {
		c.PositionScale = DefaultPositionScale
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// BodyMessage is the payload clients send to create a body. Coordinates
// are world units multiplied by the position scale and rounded.
type BodyMessage struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color,omitempty"`
}

// Engine turns the nonce-ordered event stream of one channel into fixed
// ticks of a World. Handle* may be called from the network goroutine and
// Frame from one frame goroutine. The live ClockState belongs to Frame;
// Clock and Pending read the copy published at the end of each Frame.
type Engine struct {
	conf  Config
	world World

	in  inbox
	buf []arrival

	clock ClockState

	snapMu      sync.RWMutex
	snap        ClockState
	snapPending int

	status atomic.Value // string
	steps  atomic.Uint64

	bodiesMu sync.RWMutex
	bodies   []Body
}

func New(world World, conf Config) *Engine {
	safe.MustNotNil(world, "world")
	conf.norm()
	e := &Engine{conf: conf, world: world}
	e.status.Store(StatusLoading)
	return e
}

// HandleHistory queues the replay sent on join. The status becomes
// "sleeping" until the first frame decides otherwise.
func (e *Engine) HandleHistory(h channel.History) {
	now := stamp(e.conf.Clock())
	items := make([]arrival, 0, len(h.Messages)+1)
	for _, ev := range h.Messages {
		items = append(items, arrival{ev: ev, receivedAt: now})
	}
	if h.LastHeartbeat != nil {
		items = append(items, arrival{ev: *h.LastHeartbeat, receivedAt: now})
	}
	e.in.put(items...)
	e.setStatus(StatusSleeping)
}

// HandleEvent queues one live channel event.
func (e *Engine) HandleEvent(ev channel.Event) {
	e.in.put(arrival{ev: ev, receivedAt: stamp(e.conf.Clock())})
}

// Status is the last status text: loading, live, sleeping or
// "catching up N.NNN sec".
func (e *Engine) Status() string { return e.status.Load().(string) }

// Live reports whether local input should be accepted.
func (e *Engine) Live() bool {
	s := e.Status()
	return s == StatusLive || s == StatusSleeping
}

// Steps is the total number of world steps taken.
func (e *Engine) Steps() uint64 { return e.steps.Load() }

// Bodies returns a copy of the bodies created so far.
func (e *Engine) Bodies() []Body {
	e.bodiesMu.RLock()
	defer e.bodiesMu.RUnlock()
	out := make([]Body, len(e.bodies))
	copy(out, e.bodies)
	return out
}

// Clock returns the timing state as of the last Frame, without the action
// queue. Safe from any goroutine.
func (e *Engine) Clock() ClockState {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// Pending is the number of queued actions as of the last Frame.
func (e *Engine) Pending() int {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapPending
}

// Frame runs one host frame at local time now and returns how many ticks
// were simulated.
func (e *Engine) Frame(now time.Time) int {
	n := e.frame(now)
	e.publish()
	return n
}

func (e *Engine) publish() {
	c := e.clock
	c.actions = nil
	e.snapMu.Lock()
	e.snap = c
	e.snapPending = e.clock.Pending()
	e.snapMu.Unlock()
}

func (e *Engine) frame(now time.Time) int {
	e.ingest()

	c := &e.clock
	if c.WorldTimestamp == 0 {
		return 0
	}

	nowMs := stamp(now)
	tick := e.conf.Tick.Milliseconds()
	catchUp := 2 * e.conf.Heartbeat.Milliseconds()
	sleepAfter := e.conf.SleepAfter.Milliseconds()

	if c.RenderTimestamp == 0 {
		c.RenderTimestamp = nowMs
	}
	// negative when the clocks disagree
	renderDt := nowMs - c.RenderTimestamp
	serverLatency := c.ServerLatency()
	if renderDt < tick {
		return 0
	}
	c.RenderTimestamp += tick

	steps := 0
	for i := 0; i < e.conf.MaxStepsPerFrame; i++ {
		if c.ActionTimestamp+sleepAfter <= c.WorldTimestamp {
			next, ok := c.peek()
			if !ok {
				e.setStatus(StatusSleeping)
				break
			}
			c.WorldTimestamp = next.Timestamp
		}

		physicsDt := c.SyncTimestamp - c.WorldTimestamp
		renderDelay := nowMs - c.WorldTimestamp - serverLatency
		if physicsDt < tick || (i > 0 && renderDelay < catchUp) {
			break
		}
		if renderDelay >= catchUp*2 {
			e.setStatus(catchingUp(physicsDt))
		} else {
			e.setStatus(StatusLive)
		}

		for {
			head, ok := c.peek()
			if !ok || head.Timestamp > c.WorldTimestamp {
				break
			}
			e.apply(c.pop())
		}

		c.WorldTimestamp += tick
		e.world.Step()
		steps++
	}
	e.steps.Add(uint64(steps))
	return steps
}

// ingest moves arrivals into the clock. Every event advances
// SyncTimestamp and MessageTimestamp; only message events are queued.
// A message arriving SleepAfter or more past the last applied action jumps
// WorldTimestamp to it, but only while the queue is empty: with actions
// still queued (a history replay) the frame loop jumps to each of them in
// turn, so none is skipped past its tick.
func (e *Engine) ingest() {
	items := e.in.drain(e.buf)
	c := &e.clock
	sleepAfter := e.conf.SleepAfter.Milliseconds()
	for _, a := range items {
		c.SyncTimestamp = a.ev.Timestamp
		c.MessageTimestamp = a.receivedAt
		if a.ev.Action != channel.ActionMessage {
			continue
		}
		if c.Pending() == 0 && c.ActionTimestamp+sleepAfter <= a.ev.Timestamp {
			c.WorldTimestamp = a.ev.Timestamp
		}
		c.push(a.ev)
	}
	for i := range items {
		items[i] = arrival{}
	}
	e.buf = items
}

func (e *Engine) apply(ev channel.Event) {
	md, err := decode.Decode[channel.MessageData](ev.Data)
	if err != nil || md.Message == nil {
		return
	}
	bm, err := decode.Decode[BodyMessage](md.Message)
	if err != nil {
		logger.Debugf("[syncengine] skip nonce=%d: %v", ev.Nonce, err)
		return
	}
	if bm.Action != e.conf.BodyAction {
		return
	}
	e.clock.ActionTimestamp = ev.Timestamp
	h, ok := e.world.CreateDynamicBody(bm.X/e.conf.PositionScale, bm.Y/e.conf.PositionScale)
	if !ok {
		return
	}
	e.bodiesMu.Lock()
	e.bodies = append(e.bodies, Body{Handle: h, Color: bm.Color, ClientID: md.ClientID, Nonce: ev.Nonce})
	e.bodiesMu.Unlock()
}

func (e *Engine) setStatus(s string) {
	if old, _ := e.status.Load().(string); old == s {
		return
	}
	e.status.Store(s)
	if e.conf.OnStatus != nil {
		e.conf.OnStatus(s)
	}
}
