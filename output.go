package signalgraph

import "sync"

// SignalOutput is a terminal subscription: it attaches onValue to a Signal
// and exposes a Lifetime to detach. It's the typed wrapper most callers
// should reach for instead of Signal.Subscribe directly, since it also
// tracks whether it has already seen a terminal End.
type SignalOutput[V any] struct {
	lifetime Lifetime
	mu       *sync.Mutex
	done     *bool
}

// NewOutput subscribes onValue to s and returns a handle that can later be
// cancelled. onValue is invoked on whatever goroutine the underlying
// stage's ExecutionContext dispatches on. Like Signal.Subscribe, this is a
// real terminal consumer and drives activation accordingly.
func NewOutput[V any](s Signal[V], onValue func(Result[V])) *SignalOutput[V] {
	var mu sync.Mutex
	done := false
	lt := s.subscribe(newStageCore("output"), func(r Result[V]) {
		mu.Lock()
		if r.IsEnd() {
			done = true
		}
		mu.Unlock()
		onValue(r)
	})
	return &SignalOutput[V]{lifetime: lt, mu: &mu, done: &done}
}

// Cancel detaches from the underlying signal. Safe to call more than once.
func (o *SignalOutput[V]) Cancel() { o.lifetime.Cancel() }

// Done reports whether a terminal End has already been observed.
func (o *SignalOutput[V]) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.done
}

// SignalPollingOutput buffers a Signal's Results into a channel so a
// consumer can read them synchronously with Next, rather than supplying a
// callback. Grounded on the longpoll package's channel-draining idiom
// (itself the grounding for FromChannel in graph.go): here the direction
// is reversed, a push-based Signal bridged into a pollable channel instead
// of a channel bridged into a Signal.
type SignalPollingOutput[V any] struct {
	out      *SignalOutput[V]
	results  chan Result[V]
}

// NewPollingOutput subscribes to s and buffers up to bufferSize Results
// for retrieval via Next. If the buffer fills (a slow consumer), further
// sends block the stage's dispatch loop until Next makes room; size the
// buffer for the expected consumer latency.
func NewPollingOutput[V any](s Signal[V], bufferSize int) *SignalPollingOutput[V] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	p := &SignalPollingOutput[V]{results: make(chan Result[V], bufferSize)}
	p.out = NewOutput(s, func(r Result[V]) { p.results <- r })
	return p
}

// Next blocks until a Result is available, or stops is closed, whichever
// comes first. ok is false only when stops fired first.
func (p *SignalPollingOutput[V]) Next(stop <-chan struct{}) (r Result[V], ok bool) {
	select {
	case r = <-p.results:
		return r, true
	case <-stop:
		return r, false
	}
}

// Cancel detaches from the underlying signal.
func (p *SignalPollingOutput[V]) Cancel() { p.out.Cancel() }

// SignalJunction is a re-bindable splice: it exists (and can be passed
// around, combined, and subscribed to, like any other Signal) before its
// upstream source is known, which is what lets a graph contain a feedback
// loop — a downstream stage that needs to subscribe to something only
// constructible after the downstream stage itself exists. Unlike a plain
// forward declaration, a junction can also be spliced to a different
// source later: Disconnect detaches the current upstream (if any) so Bind
// can be called again.
type SignalJunction[V any] struct {
	st *stage[V]

	mu      sync.Mutex
	bound   bool
	current Lifetime
}

// NewJunction creates an unbound junction. Signal returns the handle other
// combinators can already subscribe to; Bind later wires it to a real
// source.
func NewJunction[V any](ctx ExecutionContext) *SignalJunction[V] {
	return &SignalJunction[V]{
		st: newStage[V]("junction", ctx, &latestCachePolicy[V]{keepLive: true}),
	}
}

// Signal returns this junction's output handle.
func (j *SignalJunction[V]) Signal() Signal[V] {
	return newSignal(j.st)
}

// Bind wires source as this junction's upstream: every value (and the
// terminal End) source produces from now on is forwarded through the
// junction. Panics if already bound; call Disconnect first to rebind to a
// different source.
func (j *SignalJunction[V]) Bind(source Signal[V]) Lifetime {
	j.mu.Lock()
	if j.bound {
		j.mu.Unlock()
		panicPrecondition("bind", "junction already bound; call Disconnect first to rebind")
	}
	j.bound = true
	j.mu.Unlock()

	j.st.core.replacePredecessors(source.st.core)
	lt := source.subscribe(j.st.core, func(r Result[V]) { j.st.send(r) })

	j.mu.Lock()
	j.current = lt
	j.mu.Unlock()
	return lt
}

// Disconnect detaches the junction's current upstream, if any, so Bind can
// be called again to splice in a different source. Safe to call when not
// currently bound.
func (j *SignalJunction[V]) Disconnect() {
	j.mu.Lock()
	lt := j.current
	j.current = nil
	j.bound = false
	j.mu.Unlock()

	if lt != nil {
		lt.Cancel()
	}
	j.st.core.replacePredecessors()
}
