package syncengine

import (
	"sync"
	"time"

	"SyncProject/module/channel"
)

type arrival struct {
	ev         channel.Event
	receivedAt int64
}

// inbox hands events from the network goroutine to the frame goroutine.
// The producer only appends at the tail, the consumer only takes everything
// from the head, so arrival order (nonce order) is preserved.
type inbox struct {
	mu    sync.Mutex
	items []arrival
}

func (q *inbox) put(items ...arrival) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// drain swaps the pending slice out; buf is reused as the next buffer.
func (q *inbox) drain(buf []arrival) []arrival {
	q.mu.Lock()
	out := q.items
	q.items = buf[:0]
	q.mu.Unlock()
	return out
}

func stamp(now time.Time) int64 { return now.UnixMilli() }
