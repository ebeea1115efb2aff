package natsx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"SyncProject/module/channel"
	"SyncProject/service/export"
)

func TestSubject(t *testing.T) {
	cases := map[string]string{
		"c1":         "sync.events.c1",
		"room.a":     "sync.events.room_a",
		"x*y>z":      "sync.events.x_y_z",
		"with space": "sync.events.with_space",
		"":           "sync.events._",
	}
	for in, want := range cases {
		assert.Equal(t, want, Subject("sync.events", in), in)
	}
}

func TestBuildMsg(t *testing.T) {
	rec := export.Record{
		ChannelID: "c.1",
		Gateway:   "gw-7",
		Event:     channel.Event{Action: channel.ActionMessage, Nonce: 42},
	}
	msg := BuildMsg("tap", rec, []byte(`{}`))
	assert.Equal(t, "tap.c_1", msg.Subject)
	assert.Equal(t, "42", msg.Header.Get("Nonce"))
	assert.Equal(t, "gw-7", msg.Header.Get("Gateway"))
	assert.Equal(t, channel.ActionMessage, msg.Header.Get("Action"))
	assert.Equal(t, []byte(`{}`), msg.Data)
}
