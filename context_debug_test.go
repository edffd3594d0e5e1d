package signalgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugContext_InvokeRunsInline(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	ran := false
	ctx.Invoke(func() { ran = true })
	assert.True(t, ran)
	assert.True(t, ctx.Immediate())
	assert.True(t, ctx.Reentrant())
}

func TestDebugContext_InvokeAsyncQueuesUntilRunPending(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	ran := false
	ctx.InvokeAsync(func() { ran = true })
	assert.False(t, ran, "InvokeAsync must not run until drained")
	ctx.RunPending()
	assert.True(t, ran)
}

func TestDebugContext_RunPendingDrainsCascade(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	var order []int
	ctx.InvokeAsync(func() {
		order = append(order, 1)
		ctx.InvokeAsync(func() { order = append(order, 2) })
	})
	ctx.RunPending()
	require.Equal(t, []int{1, 2}, order)
}

func TestDebugContext_TimestampIsVirtual(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := NewDebugContext(start)
	assert.Equal(t, start, ctx.Timestamp())
	ctx.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), ctx.Timestamp())
}

func TestDebugContext_SingleTimerFiresOnAdvance(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	fired := false
	ctx.SingleTimer(10*time.Second, 0, func() { fired = true })

	ctx.Advance(5 * time.Second)
	assert.False(t, fired, "must not fire before its deadline")

	ctx.Advance(5 * time.Second)
	assert.True(t, fired)
}

func TestDebugContext_SingleTimerCancelled(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	fired := false
	lt := ctx.SingleTimer(10*time.Second, 0, func() { fired = true })
	lt.Cancel()
	ctx.Advance(20 * time.Second)
	assert.False(t, fired)
}

func TestDebugContext_PeriodicTimerReschedules(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	count := 0
	lt := ctx.PeriodicTimer(10*time.Second, 0, func() { count++ })

	ctx.Advance(35 * time.Second)
	assert.Equal(t, 3, count)

	lt.Cancel()
	ctx.Advance(100 * time.Second)
	assert.Equal(t, 3, count)
}

func TestDebugContext_MultipleTimersFireInChronologicalOrder(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	var order []string
	ctx.SingleTimer(30*time.Second, 0, func() { order = append(order, "c") })
	ctx.SingleTimer(10*time.Second, 0, func() { order = append(order, "a") })
	ctx.SingleTimer(20*time.Second, 0, func() { order = append(order, "b") })

	ctx.Advance(time.Minute)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDebugContext_TimerQueuesAsyncWorkDrainedBeforeNextTimer(t *testing.T) {
	ctx := NewDebugContext(time.Unix(0, 0))
	var order []string
	ctx.SingleTimer(10*time.Second, 0, func() {
		order = append(order, "timer1")
		ctx.InvokeAsync(func() { order = append(order, "async-from-timer1") })
	})
	ctx.SingleTimer(20*time.Second, 0, func() {
		order = append(order, "timer2")
	})

	ctx.Advance(time.Minute)
	assert.Equal(t, []string{"timer1", "async-from-timer1", "timer2"}, order)
}
