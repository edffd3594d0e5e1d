package signalgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_PeekBeforeAnyValue(t *testing.T) {
	s, _ := Create[int](Direct)
	c := Capture(s, Direct)

	_, ok := c.Peek()
	assert.False(t, ok)
}

func TestCapture_PeekReflectsLatestValueSynchronously(t *testing.T) {
	s, in := Create[int](Direct)
	c := Capture(s, Direct)

	in.SendValue(1)
	r, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, r.Value())

	in.SendValue(2)
	r, ok = c.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, r.Value())
}

func TestCapture_SignalPassesThroughAndReplaysLatestToLateSubscriber(t *testing.T) {
	s, in := Create[int](Direct)
	c := Capture(s, Direct)

	in.SendValue(1)
	in.SendValue(2)

	var got []int
	c.Signal().Subscribe(func(r Result[int]) {
		if r.IsValue() {
			got = append(got, r.Value())
		}
	})

	assert.Equal(t, []int{2}, got, "Capture's pass-through caches only the latest value, like Continuous")

	in.SendValue(3)
	assert.Equal(t, []int{2, 3}, got)
}

func TestCapture_PeekSeesEndResult(t *testing.T) {
	s, in := Create[int](Direct)
	c := Capture(s, Direct)

	in.Close()
	r, ok := c.Peek()
	require.True(t, ok)
	assert.True(t, r.IsEnd())
	assert.Equal(t, Closed(), r.End())
}
