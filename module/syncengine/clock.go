package syncengine

import "SyncProject/module/channel"

// ClockState is the timing state of one engine. All values are unix
// milliseconds; zero means "not seen yet".
type ClockState struct {
	// SyncTimestamp is the newest server timestamp received.
	SyncTimestamp int64
	// WorldTimestamp is the simulated time the world has reached. It never
	// passes SyncTimestamp.
	WorldTimestamp int64
	// RenderTimestamp is the local time of the last advanced frame, moved
	// in whole ticks.
	RenderTimestamp int64
	// MessageTimestamp is the local time the newest server frame arrived.
	MessageTimestamp int64
	// ActionTimestamp is the server timestamp of the last applied body action.
	ActionTimestamp int64

	// actions waiting for WorldTimestamp to reach them, in nonce order
	actions []channel.Event
}

// ServerLatency estimates one-way delay plus clock skew between server and
// client. It can be negative.
func (c ClockState) ServerLatency() int64 {
	return c.MessageTimestamp - c.SyncTimestamp
}

// Pending is the number of queued actions.
func (c *ClockState) Pending() int { return len(c.actions) }

func (c *ClockState) push(ev channel.Event) {
	c.actions = append(c.actions, ev)
}

func (c *ClockState) peek() (channel.Event, bool) {
	if len(c.actions) == 0 {
		return channel.Event{}, false
	}
	return c.actions[0], true
}

func (c *ClockState) pop() channel.Event {
	ev := c.actions[0]
	c.actions[0] = channel.Event{}
	if len(c.actions) == 1 {
		c.actions = c.actions[:0]
	} else {
		c.actions = c.actions[1:]
	}
	return ev
}
