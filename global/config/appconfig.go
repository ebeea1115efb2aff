package config

import (
	"os"
	"strconv"
	"time"

	"SyncProject/tools"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Sink kinds for the subscription snapshot.
const (
	SubsFile  = "file"
	SubsRedis = "redis"
	SubsNone  = "none"
)

type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Conn    ConnConfig    `yaml:"conn"`
	Channel ChannelConfig `yaml:"channel"`
	Log     LogConfig     `yaml:"log"`
	Node    NodeConfig    `yaml:"node"`
	Redis   RedisConfig   `yaml:"redis"`
	Nats    NatsConfig    `yaml:"nats"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Export  ExportConfig  `yaml:"export"`
	Grpc    GrpcConfig    `yaml:"grpc"`
	Nacos   NacosConfig   `yaml:"nacos"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	GatewayID string `yaml:"gateway_id"` // empty: random uuid at boot
	ResPath   string `yaml:"res_path"`
	Subs      string `yaml:"subs"` // file | redis | none
	// AllowedOrigins limits browser websocket upgrades; empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
	AccessLog      bool     `yaml:"access_log"`
}

type ConnConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	FirstPingDelay time.Duration `yaml:"first_ping_delay"`
	WriteWait      time.Duration `yaml:"write_wait"`
	IdleTTL        time.Duration `yaml:"idle_ttl"`
	SweepEvery     time.Duration `yaml:"sweep_every"`
	SendQueue      int           `yaml:"send_queue"`
	ReadLimit      int64         `yaml:"read_limit"`
	ErrorFrames    bool          `yaml:"error_frames"`
}

type ChannelConfig struct {
	MaxHistory         int           `yaml:"max_history"`
	MinHeartbeatPeriod time.Duration `yaml:"min_heartbeat_period"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type NodeConfig struct {
	ID int64 `yaml:"id"` // snowflake node, 0..1023
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	SubsTTL  time.Duration `yaml:"subs_ttl"`
}

type NatsConfig struct {
	Servers       []string `yaml:"servers"`
	User          string   `yaml:"user"`
	Password      string   `yaml:"password"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	Version     string   `yaml:"version"`
	Compression string   `yaml:"compression"`
	Retries     int      `yaml:"retries"`
}

type ExportConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type GrpcConfig struct {
	Addr string `yaml:"addr"` // empty disables the health server
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      uint64 `yaml:"port"`
	Namespace string `yaml:"namespace"`
	DataID    string `yaml:"data_id"`
	Group     string `yaml:"group"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// Default is the configuration used when nothing else is given.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 7071, ResPath: "res", Subs: SubsFile},
		Conn: ConnConfig{
			PingInterval:   25 * time.Second,
			FirstPingDelay: 5 * time.Second,
			WriteWait:      10 * time.Second,
			IdleTTL:        60 * time.Second,
			SweepEvery:     10 * time.Second,
			SendQueue:      256,
			ReadLimit:      64 << 10,
		},
		Channel: ChannelConfig{MaxHistory: 1000, MinHeartbeatPeriod: 8 * time.Millisecond},
		Log:     LogConfig{Level: "info"},
		Node:    NodeConfig{ID: 1},
		Redis:   RedisConfig{SubsTTL: 24 * time.Hour},
		Nats:    NatsConfig{SubjectPrefix: "sync.events"},
		Kafka:   KafkaConfig{Topic: "sync.events", Version: "2.1.0", Compression: "none", Retries: 3},
		Export:  ExportConfig{Workers: 4, QueueSize: 1024},
		Nacos:   NacosConfig{Host: "127.0.0.1", Port: 8848, Group: "DEFAULT_GROUP", DataID: "syncserver.yaml"},
	}
}

// Parse overlays a YAML document on base.
func Parse(data []byte, base AppConfig) (AppConfig, error) {
	c := base
	if err := yaml.Unmarshal(data, &c); err != nil {
		return base, errors.Wrap(err, "parse config")
	}
	return c, nil
}

// Load reads defaults, then the file at path (optional), then the
// environment.
func Load(path string) (AppConfig, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrapf(err, "read %s", path)
		}
		if c, err = Parse(b, c); err != nil {
			return c, err
		}
	}
	if err := ApplyEnv(&c, os.LookupEnv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// ApplyEnv applies WS_PORT, RES_PATH, GATEWAY_ID, REDIS_ADDR, LOG_LEVEL,
// NATS_URL and KAFKA_BROKERS.
func ApplyEnv(c *AppConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup("WS_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "WS_PORT %q", v)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("RES_PATH"); ok && v != "" {
		c.Server.ResPath = v
	}
	if v, ok := lookup("GATEWAY_ID"); ok && v != "" {
		c.Server.GatewayID = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("NATS_URL"); ok && v != "" {
		c.Nats.Servers = tools.SplitCSV(v)
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = tools.SplitCSV(v)
	}
	return nil
}

func (c AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Subs {
	case SubsFile, SubsNone:
	case SubsRedis:
		if c.Redis.Addr == "" {
			return errors.New("server.subs=redis needs redis.addr")
		}
	default:
		return errors.Errorf("server.subs %q: want file, redis or none", c.Server.Subs)
	}
	if c.Node.ID < 0 || c.Node.ID > 1023 {
		return errors.Errorf("node.id %d out of range", c.Node.ID)
	}
	if c.Channel.MaxHistory < 0 {
		return errors.New("channel.max_history negative")
	}
	return nil
}
