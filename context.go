package signalgraph

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Lifetime is a uniform cancel-on-drop handle returned by every attachment
// and timer. Go has no destructors, so callers must call Cancel (or defer
// it) explicitly rather than relying on garbage collection.
type Lifetime interface {
	Cancel()
}

// lifetimeFunc adapts a plain func() into a Lifetime.
type lifetimeFunc func()

func (f lifetimeFunc) Cancel() {
	if f != nil {
		f()
	}
}

// noopLifetime cancels nothing; used where a Lifetime is required by a
// signature but there is nothing to release.
var noopLifetime Lifetime = lifetimeFunc(nil)

// ExecutionContext abstracts where and when a stage's processor runs. See
// the concrete variants below (Direct, NewMutexContext, NewRecursiveMutexContext,
// NewSerialQueueContext, NewConcurrentPoolContext, NewThreadAffineContext,
// NewThreadAsyncContext) and DebugContext, in context_debug.go, for a
// deterministic virtual-time/virtual-thread variant used in tests.
type ExecutionContext interface {
	// Invoke runs f under this context's scheduling contract. On an
	// immediate context f has returned by the time Invoke returns; on an
	// async context, Invoke enqueues f and returns immediately.
	Invoke(f func())
	// InvokeAsync always schedules f to run later, even on an immediate
	// context, guaranteeing the caller of InvokeAsync is never reentered
	// synchronously.
	InvokeAsync(f func())
	// Immediate reports whether Invoke(f), called right now, would run f
	// inline in the caller's goroutine. For thread-affine contexts this is
	// dynamic: it depends on the calling goroutine.
	Immediate() bool
	// Reentrant reports whether a nested Invoke targeting this same
	// context, issued from within a currently-running f, is safe. When
	// false, such a nested call may deadlock (non-reentrant mutex) or is
	// handled specially by the caller (see ThreadAsync).
	Reentrant() bool
	// Timestamp returns a monotonic instant as understood by this context.
	Timestamp() time.Time
	// SingleTimer invokes f once after d has elapsed (leeway is a hint
	// permitting the context to coalesce nearby timers), dispatched via
	// Invoke. Cancelling the returned Lifetime before it fires prevents
	// the call; cancelling after is a no-op.
	SingleTimer(d time.Duration, leeway time.Duration, f func()) Lifetime
	// PeriodicTimer repeatedly invokes f every d (subject to leeway) until
	// the returned Lifetime is cancelled.
	PeriodicTimer(d time.Duration, leeway time.Duration, f func()) Lifetime
}

// InvokeSync runs f via ctx.Invoke and blocks the calling goroutine until
// it has returned, yielding f's result. Calling InvokeSync into a
// non-reentrant serial context from a goroutine that's already executing on
// that same context's worker will deadlock; that is the caller's
// responsibility to avoid, per spec.
func InvokeSync[R any](ctx ExecutionContext, f func() R) R {
	done := make(chan R, 1)
	ctx.Invoke(func() { done <- f() })
	return <-done
}

// getGoroutineID parses the current goroutine's id out of a runtime stack
// trace. Grounded on eventloop/loop.go's getGoroutineID/isLoopThread
// pattern: it's the simplest reliable way, without cgo or unsafe tricks,
// to recognize "is this the same goroutine that's already holding the
// lock" for RecursiveMutex and ThreadAffine contexts. Not on any hot path
// that needs to be allocation-free.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// safeInvoke runs f, recovering and logging any panic rather than letting
// it crash a background worker goroutine. Processor-level panics are
// additionally converted to an End by the stage itself (errors.go); this
// is a last-resort backstop for misbehaving context dispatch.
func safeInvoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logPanicRecovered("execution-context", r)
		}
	}()
	f()
}

// --- direct ---

type directContext struct{}

// Direct is the default ExecutionContext: Invoke runs f inline, in the
// caller's goroutine, with no serialization of its own (it inherits
// whatever discipline the caller already has).
var Direct ExecutionContext = directContext{}

func (directContext) Invoke(f func())      { f() }
func (directContext) InvokeAsync(f func()) { go safeInvoke(f) }
func (directContext) Immediate() bool      { return true }
func (directContext) Reentrant() bool      { return true }
func (directContext) Timestamp() time.Time { return time.Now() }

func (directContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, f)
}

func (directContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, f)
}

// --- mutex (serial sync, non-reentrant) ---

type mutexContext struct {
	mu sync.Mutex
}

// NewMutexContext returns an immediate, serially-locked, non-reentrant
// ExecutionContext: a recursive Invoke from within a running f deadlocks,
// by contract (spec §4.1).
func NewMutexContext() ExecutionContext {
	return &mutexContext{}
}

func (c *mutexContext) Invoke(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f()
}
func (c *mutexContext) InvokeAsync(f func()) { go c.Invoke(f) }
func (c *mutexContext) Immediate() bool      { return true }
func (c *mutexContext) Reentrant() bool      { return false }
func (c *mutexContext) Timestamp() time.Time { return time.Now() }
func (c *mutexContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, func() { c.Invoke(f) })
}
func (c *mutexContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, func() { c.Invoke(f) })
}

// --- recursive mutex (immediate, reentrant) ---

// recursiveMutex is a classic goroutine-aware reentrant lock: a goroutine
// that already holds it may lock again without blocking; any other
// goroutine blocks until the holder's outermost Unlock.
type recursiveMutex struct {
	real  sync.Mutex
	state sync.Mutex
	holder uint64
	depth  int
}

func (m *recursiveMutex) Lock() {
	gid := getGoroutineID()

	m.state.Lock()
	if m.holder == gid && m.depth > 0 {
		m.depth++
		m.state.Unlock()
		return
	}
	m.state.Unlock()

	m.real.Lock()

	m.state.Lock()
	m.holder = gid
	m.depth = 1
	m.state.Unlock()
}

func (m *recursiveMutex) Unlock() {
	gid := getGoroutineID()

	m.state.Lock()
	defer m.state.Unlock()

	if m.holder != gid || m.depth == 0 {
		panic("signalgraph: Unlock of recursiveMutex by a non-holder goroutine")
	}

	m.depth--
	if m.depth == 0 {
		m.holder = 0
		m.real.Unlock()
	}
}

type recursiveMutexContext struct {
	lock recursiveMutex
}

// NewRecursiveMutexContext returns an immediate, serially-locked,
// reentrant ExecutionContext: nested Invoke calls from the same goroutine
// proceed without blocking, while other goroutines still serialize.
func NewRecursiveMutexContext() ExecutionContext {
	return &recursiveMutexContext{}
}

func (c *recursiveMutexContext) Invoke(f func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	f()
}
func (c *recursiveMutexContext) InvokeAsync(f func()) { go c.Invoke(f) }
func (c *recursiveMutexContext) Immediate() bool      { return true }
func (c *recursiveMutexContext) Reentrant() bool      { return true }
func (c *recursiveMutexContext) Timestamp() time.Time { return time.Now() }
func (c *recursiveMutexContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, func() { c.Invoke(f) })
}
func (c *recursiveMutexContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, func() { c.Invoke(f) })
}

// --- serial-async queue ---

// serialQueueContext runs tasks one at a time, off the caller's goroutine,
// on a single dedicated worker. Grounded on eventloop.Loop's Submit/run
// idiom: one goroutine pulls from a channel in a loop.
type serialQueueContext struct {
	tasks     chan func()
	closeCh   chan struct{}
	closeOnce sync.Once
	workerID  atomic.Uint64
}

// NewSerialQueueContext starts a background worker goroutine and returns a
// context that dispatches onto it, one task at a time, in submission
// order. Call Close to stop the worker once it is no longer needed.
func NewSerialQueueContext() *serialQueueContext {
	c := &serialQueueContext{
		tasks:   make(chan func(), 256),
		closeCh: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *serialQueueContext) run() {
	c.workerID.Store(getGoroutineID())
	for {
		select {
		case f := <-c.tasks:
			safeInvoke(f)
		case <-c.closeCh:
			return
		}
	}
}

// Close stops the worker goroutine. Pending tasks are discarded.
func (c *serialQueueContext) Close() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

func (c *serialQueueContext) Invoke(f func())      { c.tasks <- f }
func (c *serialQueueContext) InvokeAsync(f func()) { c.Invoke(f) }
func (c *serialQueueContext) Immediate() bool      { return false }
func (c *serialQueueContext) Reentrant() bool      { return false }
func (c *serialQueueContext) Timestamp() time.Time { return time.Now() }
func (c *serialQueueContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, func() { c.Invoke(f) })
}
func (c *serialQueueContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, func() { c.Invoke(f) })
}

// --- thread-async (serial queue with reentrancy detection) ---

// threadAsyncContext behaves like a serialQueueContext, except a call
// originating from the worker goroutine itself (a loopback) runs inline
// instead of round-tripping the queue, matching spec's "reentrant-detect"
// contract for this variant.
type threadAsyncContext struct {
	*serialQueueContext
}

// NewThreadAsyncContext returns a serial-async context that detects and
// runs loopback Invoke calls (issued from its own worker) inline.
func NewThreadAsyncContext() *threadAsyncContext {
	return &threadAsyncContext{serialQueueContext: NewSerialQueueContext()}
}

func (c *threadAsyncContext) Invoke(f func()) {
	if c.Reentrant() {
		safeInvoke(f)
		return
	}
	c.serialQueueContext.Invoke(f)
}

func (c *threadAsyncContext) Reentrant() bool {
	return getGoroutineID() == c.workerID.Load()
}

// --- concurrent-async pool ---

// concurrentPoolContext dispatches every Invoke/InvokeAsync onto a bounded
// worker pool; tasks may run concurrently with each other and give no
// ordering guarantee across different Invoke calls.
type concurrentPoolContext struct {
	sem chan struct{}
}

// NewConcurrentPoolContext returns a context that runs each task on its
// own goroutine, limited to workers concurrently in flight. workers <= 0
// defaults to runtime.GOMAXPROCS(0).
func NewConcurrentPoolContext(workers int) *concurrentPoolContext {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &concurrentPoolContext{sem: make(chan struct{}, workers)}
}

// NewConcurrentPoolContextOptions is equivalent to NewConcurrentPoolContext,
// configured via ContextOption (currently just WithWorkers) rather than a
// bare int, for callers building a context alongside other option-configured
// graph components.
func NewConcurrentPoolContextOptions(opts ...ContextOption) *concurrentPoolContext {
	cfg := resolveContextOptions(opts)
	return NewConcurrentPoolContext(cfg.workers)
}

func (c *concurrentPoolContext) Invoke(f func()) {
	go func() {
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		safeInvoke(f)
	}()
}
func (c *concurrentPoolContext) InvokeAsync(f func()) { c.Invoke(f) }
func (c *concurrentPoolContext) Immediate() bool      { return false }
func (c *concurrentPoolContext) Reentrant() bool      { return true }
func (c *concurrentPoolContext) Timestamp() time.Time { return time.Now() }
func (c *concurrentPoolContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, func() { c.Invoke(f) })
}
func (c *concurrentPoolContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, func() { c.Invoke(f) })
}

// globalPool backs GlobalAsync, the package-level escape hatch any context
// can use to push work onto a shared background pool (spec's "globalAsync"
// required operation).
var globalPool = NewConcurrentPoolContext(0)

// GlobalAsync returns the shared, process-wide concurrent-pool context.
func GlobalAsync() ExecutionContext { return globalPool }

// --- thread-affine ---

// threadAffineContext binds to a single "home" goroutine: Invoke runs
// inline (and reentrant) when called from that goroutine, and is queued
// for the home goroutine to drain via Pump otherwise. The first goroutine
// to call Invoke (if none was bound explicitly) becomes home, the way a
// GUI toolkit's main-thread executor binds to whichever goroutine calls
// its Run method.
type threadAffineContext struct {
	homeID atomic.Uint64 // 0 = unbound
	tasks  chan func()
}

// NewThreadAffineContext returns an unbound thread-affine context. Either
// call BindCurrentGoroutine explicitly, or let the first Invoke bind it.
func NewThreadAffineContext() *threadAffineContext {
	return &threadAffineContext{tasks: make(chan func(), 256)}
}

// BindCurrentGoroutine pins the calling goroutine as this context's home.
func (c *threadAffineContext) BindCurrentGoroutine() {
	c.homeID.Store(getGoroutineID())
}

func (c *threadAffineContext) isHome() bool {
	home := c.homeID.Load()
	return home != 0 && home == getGoroutineID()
}

// Pump runs every task currently queued for the home goroutine. It must be
// called from the home goroutine (typically a message/run loop).
func (c *threadAffineContext) Pump() {
	for {
		select {
		case f := <-c.tasks:
			safeInvoke(f)
		default:
			return
		}
	}
}

func (c *threadAffineContext) Invoke(f func()) {
	if c.homeID.Load() == 0 {
		c.homeID.CompareAndSwap(0, getGoroutineID())
	}
	if c.isHome() {
		safeInvoke(f)
		return
	}
	c.tasks <- f
}

func (c *threadAffineContext) InvokeAsync(f func()) {
	select {
	case c.tasks <- f:
	default:
		go func() { c.tasks <- f }()
	}
}

func (c *threadAffineContext) Immediate() bool      { return c.isHome() }
func (c *threadAffineContext) Reentrant() bool      { return c.isHome() }
func (c *threadAffineContext) Timestamp() time.Time { return time.Now() }
func (c *threadAffineContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockSingleTimer(d, func() { c.Invoke(f) })
}
func (c *threadAffineContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return newWallClockPeriodicTimer(d, func() { c.Invoke(f) })
}

// --- wall-clock timers shared by the non-debug contexts ---

func newWallClockSingleTimer(d time.Duration, f func()) Lifetime {
	t := time.AfterFunc(d, f)
	return lifetimeFunc(func() { t.Stop() })
}

func newWallClockPeriodicTimer(d time.Duration, f func()) Lifetime {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	return lifetimeFunc(func() {
		once.Do(func() { close(stop) })
	})
}
