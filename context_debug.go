package signalgraph

import (
	"sort"
	"sync"
	"time"
)

// DebugContext is a deterministic ExecutionContext for tests: Invoke runs
// inline (it's immediate and reentrant, like Direct), but its notion of
// "now" and its timers are entirely virtual, advanced only by explicit
// calls to Advance. InvokeAsync doesn't spawn a goroutine either; it
// queues the call for RunPending to drain. This makes scenarios involving
// timers, or loopback scheduling via InvokeAsync, exactly reproducible
// from one test run to the next, with no wall-clock or scheduler
// nondeterminism.
type DebugContext struct {
	mu          sync.Mutex
	now         time.Time
	pending     []func()
	timers      []*debugTimer
	nextTimerID uint64
}

type debugTimer struct {
	id        uint64
	at        time.Time
	interval  time.Duration // 0 means one-shot
	f         func()
	cancelled bool
}

// NewDebugContext returns a DebugContext whose virtual clock starts at start.
func NewDebugContext(start time.Time) *DebugContext {
	return &DebugContext{now: start}
}

func (c *DebugContext) Invoke(f func()) { f() }

func (c *DebugContext) InvokeAsync(f func()) {
	c.mu.Lock()
	c.pending = append(c.pending, f)
	c.mu.Unlock()
}

func (c *DebugContext) Immediate() bool { return true }
func (c *DebugContext) Reentrant() bool { return true }

func (c *DebugContext) Timestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *DebugContext) SingleTimer(d, leeway time.Duration, f func()) Lifetime {
	return c.addTimer(d, 0, f)
}

func (c *DebugContext) PeriodicTimer(d, leeway time.Duration, f func()) Lifetime {
	return c.addTimer(d, d, f)
}

func (c *DebugContext) addTimer(d, interval time.Duration, f func()) Lifetime {
	c.mu.Lock()
	id := c.nextTimerID
	c.nextTimerID++
	t := &debugTimer{id: id, at: c.now.Add(d), interval: interval, f: f}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return lifetimeFunc(func() { c.cancelTimer(id) })
}

func (c *DebugContext) cancelTimer(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		if t.id == id {
			t.cancelled = true
			return
		}
	}
}

// RunPending drains every InvokeAsync call queued so far, including ones
// queued by earlier entries in the same drain (so cascading InvokeAsync
// calls fully settle before RunPending returns).
func (c *DebugContext) RunPending() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		f := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		safeInvoke(f)
	}
}

// Advance moves the virtual clock forward by d, firing every timer whose
// deadline falls at or before the new time, in chronological order,
// draining any InvokeAsync work each timer callback queues before moving
// on to the next timer. Periodic timers are rescheduled for their next
// interval rather than removed.
func (c *DebugContext) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := make([]*debugTimer, 0, len(c.timers))
		for _, t := range c.timers {
			if !t.cancelled && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		c.now = next.at
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
		} else {
			next.cancelled = true
		}
		f := next.f
		c.mu.Unlock()

		safeInvoke(f)
		c.RunPending()
	}

	c.RunPending()
}
