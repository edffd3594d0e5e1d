package signalgraph

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectContext_Invoke(t *testing.T) {
	ran := false
	Direct.Invoke(func() { ran = true })
	assert.True(t, ran)
	assert.True(t, Direct.Immediate())
	assert.True(t, Direct.Reentrant())
}

func TestDirectContext_InvokeAsync(t *testing.T) {
	done := make(chan struct{})
	Direct.InvokeAsync(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("InvokeAsync never ran")
	}
}

func TestMutexContext_SerializesAndRejectsReentrancy(t *testing.T) {
	ctx := NewMutexContext()
	assert.True(t, ctx.Immediate())
	assert.False(t, ctx.Reentrant())

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			ctx.Invoke(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Len(t, order, 20)
}

func TestRecursiveMutexContext_AllowsNestedInvoke(t *testing.T) {
	ctx := NewRecursiveMutexContext()
	assert.True(t, ctx.Reentrant())

	depth := 0
	ctx.Invoke(func() {
		depth++
		ctx.Invoke(func() {
			depth++
			ctx.Invoke(func() {
				depth++
			})
		})
	})
	assert.Equal(t, 3, depth)
}

func TestRecursiveMutexContext_OtherGoroutineBlocks(t *testing.T) {
	ctx := NewRecursiveMutexContext()
	holding := make(chan struct{})
	release := make(chan struct{})
	otherDone := make(chan struct{})

	go ctx.Invoke(func() {
		close(holding)
		<-release
	})
	<-holding

	go func() {
		ctx.Invoke(func() {})
		close(otherDone)
	}()

	select {
	case <-otherDone:
		t.Fatal("other goroutine should not have acquired the lock yet")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatal("other goroutine never acquired the lock after release")
	}
}

func TestSerialQueueContext_RunsOneAtATimeInOrder(t *testing.T) {
	ctx := NewSerialQueueContext()
	defer ctx.Close()

	assert.False(t, ctx.Immediate())
	assert.False(t, ctx.Reentrant())

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		i := i
		ctx.Invoke(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestThreadAsyncContext_LoopbackRunsInline(t *testing.T) {
	ctx := NewThreadAsyncContext()
	defer ctx.Close()

	var insideWorker, ranInline atomic.Bool
	done := make(chan struct{})
	outerDone := make(chan struct{})

	ctx.Invoke(func() {
		insideWorker.Store(true)
		// a loopback call from the worker's own goroutine must run inline,
		// before the nested Invoke returns, rather than round-tripping the
		// queue (where it could only run after this very callback finished).
		ctx.Invoke(func() {
			close(done)
		})
		select {
		case <-done:
			ranInline.Store(true)
		default:
		}
		close(outerDone)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loopback Invoke from the worker goroutine never ran")
	}
	<-outerDone
	assert.True(t, ranInline.Load(), "loopback Invoke must have run before the nested Invoke returned")
}

func TestThreadAsyncContext_ExternalInvokeQueues(t *testing.T) {
	ctx := NewThreadAsyncContext()
	defer ctx.Close()

	done := make(chan struct{})
	ctx.Invoke(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("external Invoke never ran")
	}
}

func TestConcurrentPoolContext_LimitsConcurrency(t *testing.T) {
	ctx := NewConcurrentPoolContext(2)
	assert.False(t, ctx.Immediate())
	assert.True(t, ctx.Reentrant())

	var cur, max atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ctx.Invoke(func() {
			defer wg.Done()
			n := cur.Add(1)
			for {
				m := max.Load()
				if n <= m || max.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, max.Load(), int32(2))
}

func TestNewConcurrentPoolContextOptions_WiresWorkers(t *testing.T) {
	ctx := NewConcurrentPoolContextOptions(WithWorkers(1))
	require.NotNil(t, ctx)
	assert.Equal(t, 1, cap(ctx.sem))
}

func TestGlobalAsync_RunsWork(t *testing.T) {
	done := make(chan struct{})
	GlobalAsync().Invoke(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GlobalAsync never ran the task")
	}
}

func TestThreadAffineContext_BindAndPump(t *testing.T) {
	ctx := NewThreadAffineContext()
	ctx.BindCurrentGoroutine()

	assert.True(t, ctx.Immediate())

	ran := false
	ctx.Invoke(func() { ran = true })
	assert.True(t, ran, "Invoke from the home goroutine runs inline")

	done := make(chan struct{})
	go func() {
		ctx.Invoke(func() { close(done) })
	}()

	select {
	case <-done:
		t.Fatal("Invoke from a non-home goroutine must not run until Pump")
	case <-time.After(20 * time.Millisecond):
	}

	require.Eventually(t, func() bool {
		ctx.Pump()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestInvokeSync(t *testing.T) {
	ctx := NewSerialQueueContext()
	defer ctx.Close()

	result := InvokeSync(ctx, func() int { return 7 })
	assert.Equal(t, 7, result)
}

func TestSafeInvoke_RecoversPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		safeInvoke(func() { panic("boom") })
	})
}

func TestWallClockSingleTimer_FiresOnceAndCancels(t *testing.T) {
	var count atomic.Int32
	lt := Direct.SingleTimer(5*time.Millisecond, 0, func() { count.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
	lt.Cancel() // no-op, already fired
}

func TestWallClockSingleTimer_CancelBeforeFire(t *testing.T) {
	var count atomic.Int32
	lt := Direct.SingleTimer(50*time.Millisecond, 0, func() { count.Add(1) })
	lt.Cancel()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestWallClockPeriodicTimer_FiresRepeatedlyUntilCancelled(t *testing.T) {
	var count atomic.Int32
	lt := Direct.PeriodicTimer(5*time.Millisecond, 0, func() { count.Add(1) })
	time.Sleep(35 * time.Millisecond)
	lt.Cancel()
	seen := count.Load()
	assert.GreaterOrEqual(t, seen, int32(3))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, count.Load(), "no further fires after cancel")
}
