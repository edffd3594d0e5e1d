package signalgraph

import "sync"

// SignalCapture wraps a Signal with a synchronous snapshot of the latest
// Result it has produced, alongside the ordinary async Signal interface.
// It exists for graph-construction code that needs to read "the current
// value" of an upstream signal at the moment it's building a downstream
// stage (e.g. seeding a combine's initial state), without waiting on the
// next async delivery.
type SignalCapture[V any] struct {
	signal Signal[V]
	live   *stage[V]
	mu     sync.Mutex
	has    bool
	last   Result[V]
}

// Capture subscribes to s and returns a handle exposing both the
// passed-through Signal (via Signal()) and a synchronous Peek.
func Capture[V any](s Signal[V], ctx ExecutionContext) *SignalCapture[V] {
	out := newStage[V]("capture", ctx, &latestCachePolicy[V]{keepLive: true})
	out.core.addPredecessor(s.st.core)
	live := newStage[V]("capture-live", ctx, &multicastPolicy[V]{})
	live.core.addPredecessor(s.st.core)

	c := &SignalCapture[V]{live: live}
	s.subscribe(out.core, func(r Result[V]) {
		c.mu.Lock()
		c.has = true
		c.last = r
		c.mu.Unlock()
		out.send(r)
		live.send(r)
	})
	c.signal = newSignal(out)

	return c
}

// Signal returns the pass-through Signal: every value (and the terminal
// End) captured also flows through here, replayed to late subscribers via
// the same latest-value cache Continuous uses. Equivalent to
// Subscribe(true, onValue) for each listener it gains.
func (c *SignalCapture[V]) Signal() Signal[V] { return c.signal }

// Subscribe resumes the captured stream, with or without first resending
// the most recently captured value: resend=true behaves like
// Signal().Subscribe (the new listener sees the latest captured Result, if
// any, before anything live); resend=false attaches to a plain multicast
// companion stream instead, so the new listener sees only values produced
// from here on, exactly like Multicast.
func (c *SignalCapture[V]) Subscribe(resend bool, onValue func(Result[V])) Lifetime {
	if resend {
		return c.signal.Subscribe(onValue)
	}
	return newSignal(c.live).Subscribe(onValue)
}

// Peek returns the most recently captured Result, and whether one has
// been captured yet.
func (c *SignalCapture[V]) Peek() (Result[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.has
}
