package global

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"SyncProject/global/config"
	"SyncProject/logger"
	"SyncProject/module/channel"
	"SyncProject/service/chat"
	"SyncProject/service/export"
	"SyncProject/service/kafka"
	"SyncProject/service/metrics"
	"SyncProject/service/natsx"
	"SyncProject/service/storage"
	"SyncProject/service/storage/redis"
	"SyncProject/tools/ids"
)

// Runtime is everything ConfigAll wired up for one server process.
type Runtime struct {
	Conf      config.AppConfig
	GatewayID string
	Metrics   *metrics.Collectors
	Sink      storage.SubscriptionSink
	Exporter  *export.Exporter // nil when no publisher is configured

	closers []func() error
}

// ConfigAll applies the process-wide settings and builds the server's
// dependencies. Close releases them.
func ConfigAll(ctx context.Context, c config.AppConfig) (*Runtime, error) {
	if err := logger.SetLevel(c.Log.Level); err != nil {
		return nil, err
	}
	ConfigIds(c)

	rt := &Runtime{Conf: c, GatewayID: c.Server.GatewayID, Metrics: metrics.New()}
	if rt.GatewayID == "" {
		rt.GatewayID = uuid.NewString()
	}

	sink, err := rt.configSink(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Sink = sink

	if err := rt.configExport(); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	logger.Info("runtime configured",
		zap.String("gatewayId", rt.GatewayID),
		zap.String("subs", c.Server.Subs),
		zap.Bool("export", rt.Exporter != nil))
	return rt, nil
}

func ConfigIds(c config.AppConfig) {
	ids.SetNodeID(c.Node.ID)
}

func ConfigRedis(c config.AppConfig) error {
	return redis.InitRedis(redis.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		PoolSize: c.Redis.PoolSize,
	})
}

func (rt *Runtime) configSink(_ context.Context) (storage.SubscriptionSink, error) {
	switch rt.Conf.Server.Subs {
	case config.SubsNone:
		return storage.NopSink{}, nil
	case config.SubsRedis:
		if err := ConfigRedis(rt.Conf); err != nil {
			return nil, errors.Wrap(err, "redis")
		}
		rt.closers = append(rt.closers, redis.CloseRedis)
		return storage.NewRedisSink(redis.GetRedis(), rt.GatewayID, rt.Conf.Redis.SubsTTL), nil
	default:
		fs, err := storage.NewFileSink(rt.Conf.Server.ResPath)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

func (rt *Runtime) configExport() error {
	var pubs []export.Publisher
	c := rt.Conf
	if len(c.Nats.Servers) > 0 {
		p, err := natsx.Connect(natsx.NatsxConfig{
			Servers:       c.Nats.Servers,
			Name:          "syncserver-" + rt.GatewayID,
			User:          c.Nats.User,
			Password:      c.Nats.Password,
			SubjectPrefix: c.Nats.SubjectPrefix,
		})
		if err != nil {
			return errors.Wrap(err, "nats")
		}
		pubs = append(pubs, p)
	}
	if len(c.Kafka.Brokers) > 0 {
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers:     c.Kafka.Brokers,
			Topic:       c.Kafka.Topic,
			Version:     c.Kafka.Version,
			Retries:     c.Kafka.Retries,
			Compression: c.Kafka.Compression,
		})
		if err != nil {
			for _, x := range pubs {
				_ = x.Close()
			}
			return errors.Wrap(err, "kafka")
		}
		pubs = append(pubs, p)
	}
	if len(pubs) == 0 {
		return nil
	}
	m := rt.Metrics
	rt.Exporter = export.New(export.Conf{
		Workers:   c.Export.Workers,
		QueueSize: c.Export.QueueSize,
		OnDrop:    func(export.Record) { m.TapDropped() },
	}, rt.GatewayID, pubs...)
	return nil
}

// ServerOptions maps the configuration onto chat.Options.
func (rt *Runtime) ServerOptions() chat.Options {
	c := rt.Conf
	opts := chat.Options{
		GatewayID: rt.GatewayID,
		Conf: chat.Conf{
			PingInterval:   c.Conn.PingInterval,
			FirstPingDelay: c.Conn.FirstPingDelay,
			WriteWait:      c.Conn.WriteWait,
			ReadLimit:      c.Conn.ReadLimit,
			ErrorFrames:    c.Conn.ErrorFrames,
			Manager: chat.ManagerConf{
				IdleTTL:    c.Conn.IdleTTL,
				SweepEvery: c.Conn.SweepEvery,
				SendQueue:  c.Conn.SendQueue,
			},
		},
		Channel: channel.Options{
			MaxHistory:         c.Channel.MaxHistory,
			MinHeartbeatPeriod: c.Channel.MinHeartbeatPeriod,
		},
		Metrics: rt.Metrics,
		Sink:    rt.Sink,
	}
	if rt.Exporter != nil {
		opts.Observers = append(opts.Observers, rt.Exporter)
	}
	return opts
}

// Close drains the exporter and releases connections, newest first.
func (rt *Runtime) Close(ctx context.Context) error {
	var first error
	if rt.Exporter != nil {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
		}
		if err := rt.Exporter.Close(ctx); err != nil {
			first = err
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
