package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SyncProject/module/channel"
)

// Collectors groups the server metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	reg *prometheus.Registry

	eventsAppended      *prometheus.CounterVec
	heartbeatSuppressed prometheus.Counter
	deliveriesFailed    prometheus.Counter
	framesDropped       *prometheus.CounterVec
	tapDropped          prometheus.Counter
	connections         prometheus.Gauge
	channels            prometheus.Gauge
}

var _ channel.Observer = (*Collectors)(nil)

func New() *Collectors {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collectors{
		reg: reg,
		eventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_events_appended_total",
			Help: "Events sequenced into any channel, by action.",
		}, []string{"action"}),
		heartbeatSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "sync_heartbeats_suppressed_total",
			Help: "Heartbeat requests that arrived inside the channel's period.",
		}),
		deliveriesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "sync_deliveries_failed_total",
			Help: "Per-member deliveries that could not be queued.",
		}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_frames_dropped_total",
			Help: "Inbound frames dropped, by error code name.",
		}, []string{"reason"}),
		tapDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "sync_tap_dropped_total",
			Help: "Events the export tap dropped because its queue was full.",
		}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "sync_connections_active",
			Help: "Open websocket connections.",
		}),
		channels: f.NewGauge(prometheus.GaugeOpts{
			Name: "sync_channels",
			Help: "Channels created since start.",
		}),
	}
}

func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

// Handler serves the registry in the text exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collectors) OnEvent(_ string, ev channel.Event) {
	if c == nil {
		return
	}
	c.eventsAppended.WithLabelValues(ev.Action).Inc()
}

func (c *Collectors) OnDeliveryFailure(string, string, error) {
	if c == nil {
		return
	}
	c.deliveriesFailed.Inc()
}

func (c *Collectors) HeartbeatSuppressed() {
	if c == nil {
		return
	}
	c.heartbeatSuppressed.Inc()
}

func (c *Collectors) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

func (c *Collectors) TapDropped() {
	if c == nil {
		return
	}
	c.tapDropped.Inc()
}

func (c *Collectors) ConnOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
}

func (c *Collectors) ConnClosed() {
	if c == nil {
		return
	}
	c.connections.Dec()
}

func (c *Collectors) SetChannels(n int) {
	if c == nil {
		return
	}
	c.channels.Set(float64(n))
}
