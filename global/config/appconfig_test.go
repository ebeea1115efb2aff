package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"SyncProject/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 7071, c.Server.Port)
	assert.Equal(t, "res", c.Server.ResPath)
	assert.Equal(t, SubsFile, c.Server.Subs)
	assert.False(t, c.Conn.ErrorFrames)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sync.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
server:
  port: 9000
  subs: none
conn:
  ping_interval: 5s
  error_frames: true
kafka:
  brokers: [k1:9092]
`), 0o644))

	t.Setenv("WS_PORT", "9100")
	t.Setenv("GATEWAY_ID", "gw-7")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "gw-7", c.Server.GatewayID)
	assert.Equal(t, SubsNone, c.Server.Subs)
	assert.Equal(t, 5*time.Second, c.Conn.PingInterval)
	assert.True(t, c.Conn.ErrorFrames)
	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, c.Conn.WriteWait)
	assert.Equal(t, []string{"k1:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "sync.events", c.Kafka.Topic)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	require.NoError(t, ApplyEnv(&c, env(map[string]string{
		"RES_PATH":      "/tmp/res",
		"REDIS_ADDR":    "r:6379",
		"LOG_LEVEL":     "debug",
		"NATS_URL":      "nats://a:4222, nats://b:4222",
		"KAFKA_BROKERS": "",
	})))
	assert.Equal(t, "/tmp/res", c.Server.ResPath)
	assert.Equal(t, "r:6379", c.Redis.Addr)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, c.Nats.Servers)
	assert.Nil(t, c.Kafka.Brokers)

	assert.Error(t, ApplyEnv(&c, env(map[string]string{"WS_PORT": "x"})))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"port":      func(c *AppConfig) { c.Server.Port = 0 },
		"subs":      func(c *AppConfig) { c.Server.Subs = "s3" },
		"redisAddr": func(c *AppConfig) { c.Server.Subs = SubsRedis },
		"node":      func(c *AppConfig) { c.Node.ID = 2048 },
		"history":   func(c *AppConfig) { c.Channel.MaxHistory = -1 },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mut(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestParseKeepsBaseOnError(t *testing.T) {
	base := Default()
	got, err := Parse([]byte("server: [oops"), base)
	assert.Error(t, err)
	assert.Equal(t, base, got)
}

type fakeNacos struct {
	content  string
	onChange func(namespace, group, dataId, data string)
	canceled bool
}

func (f *fakeNacos) GetConfig(vo.ConfigParam) (string, error) { return f.content, nil }

func (f *fakeNacos) ListenConfig(p vo.ConfigParam) error {
	f.onChange = p.OnChange
	return nil
}

func (f *fakeNacos) CancelListenConfig(vo.ConfigParam) error {
	f.canceled = true
	return nil
}

func TestWatcherAppliesLogLevel(t *testing.T) {
	prev := logger.Level()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	f := &fakeNacos{content: "log:\n  level: warn\n"}
	w := NewWatcher(f, Default())
	c, err := w.Start()
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, "warn", logger.Level())
	require.NotNil(t, f.onChange)

	f.onChange("public", "DEFAULT_GROUP", "syncserver.yaml", "log:\n  level: debug\n")
	assert.Equal(t, "debug", logger.Level())
	assert.Equal(t, "debug", w.Current().Log.Level)

	// a bad document is ignored
	f.onChange("public", "DEFAULT_GROUP", "syncserver.yaml", "log:\n  level: loud\n")
	assert.Equal(t, "debug", logger.Level())
	assert.Equal(t, "debug", w.Current().Log.Level)

	require.NoError(t, w.Stop())
	assert.True(t, f.canceled)
}
