package ids

import (
	"strconv"
	"sync"
	"time"
)

// Generator hands out snowflake ids: 41 bits of milliseconds since epoch,
// 10 bits of node id, 12 bits of per-millisecond sequence.
type Generator struct {
	mu       sync.Mutex
	epochMS  int64
	nodeID   int64 // 0~1023
	seq      int64 // 0~4095
	lastTSMS int64
	now      func() time.Time
}

var (
	defaultGen *Generator
	once       sync.Once
)

func initDefault() {
	once.Do(func() {
		defaultGen = NewGenerator(1, nil)
	})
}

// NewGenerator builds a generator for nodeID. now may be nil (time.Now).
func NewGenerator(nodeID int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	if nodeID < 0 || nodeID > 1023 {
		nodeID = 1
	}
	return &Generator{
		epochMS: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		nodeID:  nodeID,
		now:     now,
	}
}

// Generate returns a new id from the process-wide generator.
func Generate() int64 {
	initDefault()
	return defaultGen.Next()
}

func GenerateString() string {
	initDefault()
	return defaultGen.NextString()
}

// SetNodeID sets the node id (0~1023) of the process-wide generator; call it
// once at startup, before the first id is handed out.
func SetNodeID(nodeID int64) {
	initDefault()
	defaultGen.mu.Lock()
	defer defaultGen.mu.Unlock()
	if nodeID < 0 || nodeID > 1023 {
		nodeID = 1
	}
	defaultGen.nodeID = nodeID
}

// Next returns the next id. Ids from one generator are strictly increasing.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	if now < g.lastTSMS {
		// clock went backwards: keep issuing from the last seen millisecond
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & 0xFFF
		if g.seq == 0 {
			// sequence exhausted, borrow the next millisecond
			now = g.lastTSMS + 1
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	ts := (now - g.epochMS) & ((1 << 41) - 1)
	return (ts << 22) | (g.nodeID << 12) | g.seq
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}
