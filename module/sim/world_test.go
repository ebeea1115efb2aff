package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorld_FallsToGround(t *testing.T) {
	w := New(Config{})
	h, ok := w.CreateDynamicBody(1, 2)
	require.True(t, ok)
	require.IsType(t, &Body{}, h)

	for i := 0; i < 200; i++ {
		w.Step()
	}
	bodies := w.Snapshot()
	require.Len(t, bodies, 1)
	assert.Equal(t, 1.0, bodies[0].X)
	assert.Equal(t, 0.0, bodies[0].Y)
	assert.Equal(t, uint64(200), w.Steps())
}

func TestWorld_MaxBodies(t *testing.T) {
	w := New(Config{MaxBodies: 2})
	_, ok := w.CreateDynamicBody(0, 0)
	assert.True(t, ok)
	_, ok = w.CreateDynamicBody(0, 0)
	assert.True(t, ok)
	_, ok = w.CreateDynamicBody(0, 0)
	assert.False(t, ok)
}

func TestWorld_ChecksumDeterministic(t *testing.T) {
	run := func(createAt int) uint64 {
		w := New(Config{})
		for i := 0; i < 50; i++ {
			if i == createAt {
				w.CreateDynamicBody(0.25, 3)
			}
			w.Step()
		}
		return w.Checksum()
	}
	assert.Equal(t, run(10), run(10))
	assert.NotEqual(t, run(10), run(11))
}
