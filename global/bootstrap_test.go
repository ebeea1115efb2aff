package global

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SyncProject/global/config"
	"SyncProject/service/storage"
)

func TestConfigAllFileSink(t *testing.T) {
	c := config.Default()
	c.Server.ResPath = t.TempDir()
	c.Server.GatewayID = "gw-test"
	c.Conn.ErrorFrames = true
	c.Channel.MaxHistory = 50

	rt, err := ConfigAll(context.Background(), c)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.Equal(t, "gw-test", rt.GatewayID)
	assert.IsType(t, &storage.FileSink{}, rt.Sink)
	assert.Nil(t, rt.Exporter)

	opts := rt.ServerOptions()
	assert.Equal(t, "gw-test", opts.GatewayID)
	assert.True(t, opts.Conf.ErrorFrames)
	assert.Equal(t, 50, opts.Channel.MaxHistory)
	assert.Equal(t, c.Conn.IdleTTL, opts.Conf.Manager.IdleTTL)
	assert.Same(t, rt.Metrics, opts.Metrics)
	assert.Empty(t, opts.Observers)
}

func TestConfigAllGeneratesGatewayID(t *testing.T) {
	c := config.Default()
	c.Server.Subs = config.SubsNone
	rt, err := ConfigAll(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, rt.GatewayID, 36)
	assert.IsType(t, storage.NopSink{}, rt.Sink)
	require.NoError(t, rt.Close(context.Background()))
}

func TestConfigAllRejectsBadLevel(t *testing.T) {
	c := config.Default()
	c.Log.Level = "chatty"
	_, err := ConfigAll(context.Background(), c)
	assert.Error(t, err)
}

func TestConfigAllRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	c := config.Default()
	c.Server.Subs = config.SubsRedis
	c.Server.GatewayID = "gw-r"
	c.Redis.Addr = mr.Addr()
	c.Redis.SubsTTL = time.Minute

	rt, err := ConfigAll(context.Background(), c)
	require.NoError(t, err)
	require.IsType(t, &storage.RedisSink{}, rt.Sink)

	subs := []storage.Subscription{{ClientID: "1", RemoteAddress: "10.0.0.1:5000"}}
	require.NoError(t, rt.Sink.Save(context.Background(), subs))
	assert.True(t, mr.Exists("sync:subs:gw-r"))
	require.NoError(t, rt.Close(context.Background()))
}
