package natsx

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"SyncProject/service/export"
)

// NatsxConfig is the client setup for the event tap.
type NatsxConfig struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	SubjectPrefix string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *NatsxConfig) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "sync.events"
	}
	if c.Name == "" {
		c.Name = "syncserver"
	}
}

// NatsxPublisher publishes tap records on <prefix>.<channel>.
type NatsxPublisher struct {
	nc     *nats.Conn
	prefix string
}

var _ export.Publisher = (*NatsxPublisher)(nil)

// Connect dials NATS with reconnects enabled forever.
func Connect(cfg NatsxConfig) (*NatsxPublisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	cfg.norm()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return NewPublisher(nc, cfg.SubjectPrefix), nil
}

func NewPublisher(nc *nats.Conn, prefix string) *NatsxPublisher {
	return &NatsxPublisher{nc: nc, prefix: prefix}
}

func (p *NatsxPublisher) Name() string { return "nats" }

func (p *NatsxPublisher) Publish(_ context.Context, rec export.Record, payload []byte) error {
	return p.nc.PublishMsg(BuildMsg(p.prefix, rec, payload))
}

// Close flushes pending publishes.
func (p *NatsxPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// BuildMsg maps a record onto a NATS message with Nonce and Gateway headers.
func BuildMsg(prefix string, rec export.Record, payload []byte) *nats.Msg {
	msg := nats.NewMsg(Subject(prefix, rec.ChannelID))
	msg.Data = payload
	msg.Header.Set("Nonce", strconv.FormatInt(rec.Event.Nonce, 10))
	msg.Header.Set("Gateway", rec.Gateway)
	msg.Header.Set("Action", rec.Event.Action)
	return msg
}

// Subject turns a channel id into one subject token: wildcards, token
// separators and whitespace become '_'.
func Subject(prefix, channelID string) string {
	tok := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, channelID)
	if tok == "" {
		tok = "_"
	}
	return prefix + "." + tok
}
