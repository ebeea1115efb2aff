package kafka

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"SyncProject/service/export"
)

type Config struct {
	Brokers     []string
	Topic       string
	Version     string // e.g. "2.1.0"
	Retries     int
	Compression string // none/snappy/lz4/zstd
}

// BuildBaseConfig returns a producer config where the record key picks the
// partition, so one channel stays on one partition.
func BuildBaseConfig(c Config) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "kafka version %q", c.Version)
		}
		cfg.Version = v
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 1
	}
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}

// Publisher writes tap records to one topic keyed by channel id.
type Publisher struct {
	prod  sarama.SyncProducer
	topic string
}

var _ export.Publisher = (*Publisher)(nil)

func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	p, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new sync producer")
	}
	return NewPublisherFromProducer(p, c.Topic), nil
}

func NewPublisherFromProducer(p sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = "sync.events"
	}
	return &Publisher{prod: p, topic: topic}
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) Publish(_ context.Context, rec export.Record, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(rec.ChannelID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("nonce"), Value: []byte(strconv.FormatInt(rec.Event.Nonce, 10))},
			{Key: []byte("gateway"), Value: []byte(rec.Gateway)},
		},
	}
	_, _, err := p.prod.SendMessage(msg)
	return err
}

func (p *Publisher) Close() error { return p.prod.Close() }
