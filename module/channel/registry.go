package channel

import (
	"sort"
	"sync"
)

// Registry maps channel ids to channels. Its lock only guards the map;
// channel operations run under each channel's own lock.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewRegistry(opts Options) *Registry {
	opts.norm()
	return &Registry{
		opts:     opts,
		channels: make(map[string]*Channel),
	}
}

// GetOrCreate returns the channel for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) (ch *Channel, created bool) {
	r.mu.RLock()
	ch = r.channels[id]
	r.mu.RUnlock()
	if ch != nil {
		return ch, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch = r.channels[id]; ch != nil {
		return ch, false
	}
	ch = newChannel(id, &r.opts)
	r.channels[id] = ch
	return ch, true
}

func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Stats returns per-channel stats sorted by id.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	list := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		list = append(list, ch)
	}
	r.mu.RUnlock()

	out := make([]Stats, 0, len(list))
	for _, ch := range list {
		out = append(out, ch.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
