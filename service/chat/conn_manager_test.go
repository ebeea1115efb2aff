package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SyncProject/tools/errs"
)

func testManager(now *time.Time) *ConnManager {
	m := NewConnManagerWithConf(ManagerConf{
		IdleTTL:    time.Minute,
		SweepEvery: time.Hour,
		SendQueue:  2,
		Clock:      func() time.Time { return *now },
	}, "gw")
	return m
}

func addConn(m *ConnManager, id string, at time.Time) *WsConn {
	w := newWsConn(id, nil, "10.0.0.1", "127.0.0.1:4000", m.conf.SendQueue, at, m.conf.IdleTTL)
	m.mu.Lock()
	m.bySnow[id] = w
	m.mu.Unlock()
	return w
}

func TestWsConn_DeliverNeverBlocks(t *testing.T) {
	now := time.Now()
	w := newWsConn("a", nil, "", "", 2, now, time.Minute)

	require.NoError(t, w.Deliver([]byte("1")))
	require.NoError(t, w.Deliver([]byte("2")))
	err := w.Deliver([]byte("3"))
	assert.True(t, errs.ErrDeliveryFailure.Is(err))

	w.closeSend()
	w.closeSend()
	assert.True(t, errs.ErrSessionClosed.Is(w.Deliver([]byte("4"))))

	var got []string
	for b := range w.SendChan {
		got = append(got, string(b))
	}
	assert.Equal(t, []string{"1", "2"}, got)
}

func TestWsConn_BindOnce(t *testing.T) {
	w := newWsConn("a", nil, "xff", "remote", 1, time.Now(), time.Minute)
	assert.Equal(t, "", w.Subscription().RemoteAddress)

	require.NoError(t, w.BindChannel("c1"))
	err := w.BindChannel("c2")
	assert.True(t, errs.ErrAlreadyJoined.Is(err))
	assert.Equal(t, "c1", w.ChannelID())

	sub := w.Subscription()
	assert.Equal(t, "xff", sub.XForwardedFor)
	assert.Equal(t, "remote", sub.RemoteAddress)
	assert.Equal(t, "a", sub.ClientID)
}

func TestConnManager_SweepIdle(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(&now)
	defer m.Close()

	addConn(m, "old", now)
	now = now.Add(45 * time.Second)
	addConn(m, "fresh", now)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, m.sweepOnce(now))

	m.Heartbeat("fresh")
	now = now.Add(50 * time.Second)
	assert.Equal(t, 1, m.sweepOnce(now)) // "old" is still registered until its read loop exits

	_, ok := m.Remove("old")
	assert.True(t, ok)
	assert.Equal(t, 0, m.sweepOnce(now))
	assert.Equal(t, 1, m.Len())
}

func TestConnManager_SnapshotOrder(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(&now)
	defer m.Close()

	b := addConn(m, "b", now.Add(time.Second))
	addConn(m, "a", now)
	require.NoError(t, b.BindChannel("c1"))

	subs := m.Snapshot()
	require.Len(t, subs, 2)
	assert.Equal(t, "a", subs[0].ClientID)
	assert.Empty(t, subs[0].RemoteAddress)
	assert.Equal(t, "b", subs[1].ClientID)
	assert.Equal(t, "127.0.0.1:4000", subs[1].RemoteAddress)
}

func TestParseFrameJSON(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"action":"heartbeat","periodMs":80}`))
	require.NoError(t, err)
	assert.Equal(t, ActionHeartbeat, f.Action)
	assert.Equal(t, 80.0, f.Fields["periodMs"])

	for _, raw := range []string{``, `null`, `"join"`, `{"action":7}`, `{}`} {
		_, err := ParseFrameJSON([]byte(raw))
		assert.True(t, errs.ErrMalformedFrame.Is(err), raw)
	}
}

func TestBuildErrorFrame(t *testing.T) {
	b, err := BuildErrorFrame(errs.ErrNotJoined.WrapMsg("", "clientId", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"code":1003,"msg":"NotJoined","detail":"clientId=a"}}`, string(b))
}
