package sim

import (
	"hash/fnv"
	"math"
	"sync"

	"SyncProject/module/syncengine"
)

// Config describes a sandbox world. The defaults match a 16ms tick.
type Config struct {
	Dt          float64 // seconds per step
	Gravity     float64 // m/s^2, negative is down
	GroundY     float64
	Restitution float64
	MaxBodies   int
}

func (c *Config) norm() {
	if c.Dt <= 0 {
		c.Dt = 0.016
	}
	if c.Gravity == 0 {
		c.Gravity = -9.81
	}
	if c.Restitution < 0 || c.Restitution > 1 {
		c.Restitution = 0
	}
	if c.MaxBodies <= 0 {
		c.MaxBodies = 4096
	}
}

// Body is a point mass.
type Body struct {
	ID     int
	X, Y   float64
	VX, VY float64
}

// World is a deterministic point-mass world: same creations at the same
// steps give bit-identical state on every client.
type World struct {
	conf Config

	mu     sync.RWMutex
	steps  uint64
	bodies []*Body
}

var _ syncengine.World = (*World)(nil)

func New(conf Config) *World {
	conf.norm()
	return &World{conf: conf}
}

func (w *World) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	dt := w.conf.Dt
	for _, b := range w.bodies {
		b.VY += w.conf.Gravity * dt
		b.X += b.VX * dt
		b.Y += b.VY * dt
		if b.Y < w.conf.GroundY {
			b.Y = w.conf.GroundY
			b.VY = -b.VY * w.conf.Restitution
		}
	}
	w.steps++
}

// CreateDynamicBody refuses new bodies once MaxBodies is reached.
func (w *World) CreateDynamicBody(x, y float64) (syncengine.BodyHandle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.bodies) >= w.conf.MaxBodies {
		return nil, false
	}
	b := &Body{ID: len(w.bodies) + 1, X: x, Y: y}
	w.bodies = append(w.bodies, b)
	return b, true
}

func (w *World) Steps() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.steps
}

// Snapshot copies the current bodies.
func (w *World) Snapshot() []Body {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = *b
	}
	return out
}

// Checksum hashes step count and body state. Two clients that replayed the
// same channel to the same world time report the same value.
func (w *World) Checksum() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	put(w.steps)
	for _, b := range w.bodies {
		put(math.Float64bits(b.X))
		put(math.Float64bits(b.Y))
		put(math.Float64bits(b.VX))
		put(math.Float64bits(b.VY))
	}
	return h.Sum64()
}
