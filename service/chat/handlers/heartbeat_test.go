package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatPeriod(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
	}{
		{float64(80), 80 * time.Millisecond},
		{80.9, 80 * time.Millisecond},
		{"80", 80 * time.Millisecond},
		{"80ms", 80 * time.Millisecond},
		{" 120.5", 120 * time.Millisecond},
		{"ms80", 0},
		{"", 0},
		{true, 0},
		{nil, 0},
	}
	for _, c := range cases {
		got := heartbeatPeriod(map[string]any{"action": "heartbeat", "periodMs": c.in})
		assert.Equal(t, c.want, got, "periodMs=%#v", c.in)
	}
	assert.Zero(t, heartbeatPeriod(map[string]any{"action": "heartbeat"}))
}
