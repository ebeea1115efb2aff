package export

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/tools/safe"
)

// Record is what the tap ships for every sequenced event.
type Record struct {
	ChannelID string        `json:"channelId"`
	Gateway   string        `json:"gateway"`
	Event     channel.Event `json:"event"`
}

// Publisher sends one encoded record somewhere outside the process.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, rec Record, payload []byte) error
	Close() error
}

type Conf struct {
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
	// OnDrop is called for every record dropped on a full queue.
	OnDrop func(rec Record)
}

func (c *Conf) norm() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 3 * time.Second
	}
}

// Exporter is a channel.Observer that copies events to publishers off the
// channel lock. Records of one channel always land on the same worker, so
// each channel is exported in nonce order.
type Exporter struct {
	conf      Conf
	gatewayID string
	pubs      []Publisher
	log       *zap.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan Record
	wg     sync.WaitGroup
}

var _ channel.Observer = (*Exporter)(nil)

func New(conf Conf, gatewayID string, pubs ...Publisher) *Exporter {
	conf.norm()
	e := &Exporter{
		conf:      conf,
		gatewayID: gatewayID,
		pubs:      pubs,
		log:       logger.Named("export"),
		queues:    make([]chan Record, conf.Workers),
	}
	for i := range e.queues {
		q := make(chan Record, conf.QueueSize)
		e.queues[i] = q
		e.wg.Add(1)
		go e.worker(q)
	}
	return e
}

func (e *Exporter) OnEvent(channelID string, ev channel.Event) {
	rec := Record{ChannelID: channelID, Gateway: e.gatewayID, Event: ev}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queues[shard(channelID, len(e.queues))] <- rec:
	default:
		e.log.Warn("tap queue full, drop",
			zap.String("channel", channelID), zap.Int64("nonce", ev.Nonce))
		if e.conf.OnDrop != nil {
			e.conf.OnDrop(rec)
		}
	}
}

func (e *Exporter) OnDeliveryFailure(string, string, error) {}

// Close stops accepting records, drains what is queued and closes the
// publishers. ctx bounds the drain.
func (e *Exporter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, q := range e.queues {
		close(q)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	for _, p := range e.pubs {
		if cerr := p.Close(); cerr != nil {
			e.log.Warn("close publisher", zap.String("publisher", p.Name()), zap.Error(cerr))
		}
	}
	return err
}

func (e *Exporter) worker(q <-chan Record) {
	defer e.wg.Done()
	defer safe.Recover("export.worker")
	for rec := range q {
		payload, err := json.Marshal(rec)
		if err != nil {
			e.log.Error("encode record", zap.String("channel", rec.ChannelID), zap.Error(err))
			continue
		}
		for _, p := range e.pubs {
			ctx, cancel := context.WithTimeout(context.Background(), e.conf.PublishTimeout)
			if err := p.Publish(ctx, rec, payload); err != nil {
				e.log.Warn("publish",
					zap.String("publisher", p.Name()),
					zap.String("channel", rec.ChannelID),
					zap.Int64("nonce", rec.Event.Nonce),
					zap.Error(err))
			}
			cancel()
		}
	}
}

func shard(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
