package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_ReplacesSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "res")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Save(ctx, []Subscription{
		{XForwardedFor: "10.0.0.1", RemoteAddress: "127.0.0.1:5000", ClientID: "a"},
		{ClientID: "b"},
	}))
	got, err := LoadSubscriptions(sink.Path())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].XForwardedFor)
	assert.Equal(t, "b", got[1].ClientID)

	require.NoError(t, sink.Save(ctx, nil))
	got, err = LoadSubscriptions(sink.Path())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNopSink(t *testing.T) {
	assert.NoError(t, NopSink{}.Save(context.Background(), []Subscription{{ClientID: "a"}}))
}

func TestRedisSink_SaveAndLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sink := NewRedisSink(rdb, "gw-1", time.Minute)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, []Subscription{
		{RemoteAddress: "127.0.0.1:1", ClientID: "a"},
		{RemoteAddress: "127.0.0.1:2", ClientID: "b"},
	}))
	got, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "127.0.0.1:2", got["b"].RemoteAddress)
	assert.Equal(t, time.Minute, mr.TTL(subsKey("gw-1")))

	require.NoError(t, sink.Save(ctx, []Subscription{{ClientID: "b"}}))
	got, err = sink.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "b")

	require.NoError(t, sink.Save(ctx, nil))
	assert.False(t, mr.Exists(subsKey("gw-1")))
}
