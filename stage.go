package signalgraph

import (
	"sync"
)

// replayPolicy controls what a newly-attached listener receives before it
// starts seeing live Results, and what (if anything) a stage retains as
// Results flow through it. The default (a nil policy passed to newStage,
// as Create and the bare sources do) is the single-listener policy (no
// cache, no replay, and a second attach is a precondition violation); the
// bare Transform/Combine/Merge/Batch outputs use bufferUntilAttachPolicy
// below; multilistener.go supplies the
// continuous/playback/cache-until-active/multicast variants, and
// CustomActivation reuses the playback variant as the
// cache-everything-sent-so-far store its "initial values" ride on.
//
// onAttach and onSend are called with the owning stage's mutex held;
// policies must not call back into the stage (attach/send) from within
// them. onDeactivate is called from the activation cascade, without that
// mutex.
type replayPolicy[V any] interface {
	// onAttach is invoked once per new listener, and should invoke
	// deliver once per cached Result[V] that must be replayed to it,
	// in order.
	onAttach(deliver func(Result[V]))
	// onSend is invoked for every live Result, before fan-out, so the
	// policy can update any cache it keeps.
	onSend(r Result[V])
	// allowMultiple reports whether more than one concurrent listener
	// may be attached at once.
	allowMultiple() bool
	// keepsAliveWithoutSuccessors reports whether the stage should stay
	// active (and keep its predecessor activated) even once its last
	// listener detaches. continuous uses this; the rest don't.
	keepsAliveWithoutSuccessors() bool
	// onDeactivate is invoked once the stage's activation state drops back
	// to inactive, letting the policy drop any cache that shouldn't
	// survive a future re-activation (playback, continuousWhileActive).
	onDeactivate()
}

// singleListenerPolicy is the default: no replay, and only one listener
// may ever be attached (a second attach panics, following this package's
// precondition-violation-panics convention for programmer errors).
type singleListenerPolicy[V any] struct{}

func (singleListenerPolicy[V]) onAttach(func(Result[V]))         {}
func (singleListenerPolicy[V]) onSend(Result[V])                 {}
func (singleListenerPolicy[V]) allowMultiple() bool               { return false }
func (singleListenerPolicy[V]) keepsAliveWithoutSuccessors() bool { return false }
func (singleListenerPolicy[V]) onDeactivate()                    {}

// bufferUntilAttachPolicy backs every bare combinator output (Transform,
// Combine, Merge, Batch): still single-listener, like singleListenerPolicy,
// but it buffers any Result sent before that one listener attaches. A
// combinator subscribes to its own input(s) eagerly at construction time
// (see Transform, combineBase), which can activate an upstream Generate-
// or Timer-based source, and thus produce Results, before the combinator's
// own output has its first (and only) listener — without this buffer,
// those Results would simply be dropped on the floor.
type bufferUntilAttachPolicy[V any] struct {
	mu       sync.Mutex
	buffered []Result[V]
	attached bool
}

func (p *bufferUntilAttachPolicy[V]) onAttach(deliver func(Result[V])) {
	p.mu.Lock()
	snapshot := p.buffered
	p.buffered = nil
	p.attached = true
	p.mu.Unlock()
	for _, r := range snapshot {
		deliver(r)
	}
}
func (p *bufferUntilAttachPolicy[V]) onSend(r Result[V]) {
	p.mu.Lock()
	if !p.attached {
		p.buffered = append(p.buffered, r)
	}
	p.mu.Unlock()
}
func (p *bufferUntilAttachPolicy[V]) allowMultiple() bool               { return false }
func (p *bufferUntilAttachPolicy[V]) keepsAliveWithoutSuccessors() bool { return false }
func (p *bufferUntilAttachPolicy[V]) onDeactivate() {
	p.mu.Lock()
	p.buffered = nil
	p.attached = false
	p.mu.Unlock()
}

type stageListener[V any] struct {
	id      uint64
	core    *stageCore
	onValue func(Result[V])
}

// stage is the runtime node behind every Signal: it owns a replay policy,
// a set of attached listeners, and the non-reentrant dispatch loop that
// serializes sends (including loopback sends arriving while a dispatch is
// already in flight) through a deferredQueue. It embeds *stageCore for
// identity and activation-protocol bookkeeping (predecessor.go).
type stage[V any] struct {
	core   *stageCore
	ctx    ExecutionContext
	policy replayPolicy[V]

	mu        sync.Mutex
	listeners []*stageListener[V]
	inDispatch bool
	deferred  *deferredQueue[Result[V]]
	ended     bool
}

func newStage[V any](name string, ctx ExecutionContext, policy replayPolicy[V]) *stage[V] {
	if ctx == nil {
		ctx = Direct
	}
	if policy == nil {
		policy = singleListenerPolicy[V]{}
	}
	core := newStageCore(name)
	core.keepAliveWithoutSuccessors = policy.keepsAliveWithoutSuccessors()
	core.onInactive = policy.onDeactivate
	s := &stage[V]{
		core:     core,
		ctx:      ctx,
		policy:   policy,
		deferred: newDeferredQueue[Result[V]](),
	}
	return s
}

// name exposes the stage's diagnostic name, e.g. for logging.
func (s *stage[V]) name() string { return s.core.name }

// attach registers a new listener, replaying this stage's cache (per
// policy) to it before returning. successorCore identifies the attaching
// party for activation-cascade and cycle-detection purposes; it may be nil
// (Signal.Subscribe and SignalOutput always pass a core of their own), in
// which case the listener is registered without touching the activation
// refcount or the cycle check.
//
// Resolves Open Question 2 (spec §9): replay to the new listener happens
// while s.mu is held, and deliver updates the cache and snapshots the
// listener list under that same mutex (the fan-out itself runs after the
// mutex is released) — so a value sent concurrently with an attach is
// observed by the new listener either via replay (attach came after the
// cache update) or via live fan-out (attach came before the snapshot),
// never both or neither.
func (s *stage[V]) attach(successorCore *stageCore, onValue func(Result[V])) Lifetime {
	s.mu.Lock()
	if len(s.listeners) > 0 && !s.policy.allowMultiple() {
		s.mu.Unlock()
		panicPrecondition("attach", "stage %q does not support multiple listeners", s.core.name)
	}

	listener := &stageListener[V]{id: newStageID(), core: successorCore, onValue: onValue}
	s.policy.onAttach(func(r Result[V]) { onValue(r) })
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()

	if successorCore != nil {
		s.core.attachSuccessor(successorCore)
	}

	return lifetimeFunc(func() { s.detach(listener, successorCore) })
}

func (s *stage[V]) detach(listener *stageListener[V], successorCore *stageCore) {
	s.mu.Lock()
	for i, l := range s.listeners {
		if l.id == listener.id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if successorCore != nil {
		s.core.detachSuccessor(successorCore)
	}
}

// send delivers r to this stage via its ExecutionContext, which serializes
// it against any dispatch already in flight. Safe to call from any
// goroutine, including from within another stage's own dispatch.
func (s *stage[V]) send(r Result[V]) {
	s.ctx.Invoke(func() { s.dispatch(r) })
}

// dispatch is the non-reentrant delivery loop. A send observed while a
// dispatch is already running (a loopback, per spec §9) is queued rather
// than processed inline, and drained, one entry at a time, once the
// in-flight dispatch completes.
func (s *stage[V]) dispatch(r Result[V]) {
	s.mu.Lock()
	if s.inDispatch {
		s.deferred.push(r)
		s.mu.Unlock()
		return
	}
	s.inDispatch = true
	s.mu.Unlock()

	s.deliver(r)

	for {
		s.mu.Lock()
		if s.deferred.len() == 0 {
			s.inDispatch = false
			s.mu.Unlock()
			return
		}
		next := s.deferred.pop()
		s.mu.Unlock()
		s.deliver(next)
	}
}

// deliver updates the replay cache and snapshots the current listeners
// under s.mu, then fans r out to that snapshot with s.mu released (see
// attach's doc comment for why). On a terminal End, the stage marks itself
// complete after fan-out.
func (s *stage[V]) deliver(r Result[V]) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		logStageError(s.core.effectiveLogger(), s.core.name, errAlreadyEnded)
		return
	}
	if r.IsEnd() {
		s.ended = true
	}
	s.policy.onSend(r)
	listeners := append([]*stageListener[V]{}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.onValue(r)
	}

	if r.IsEnd() {
		s.core.markComplete(r.End())
	}
}

// emitter adapts a stage into the Emitter[V] a processor writes to.
type emitter[V any] struct {
	s *stage[V]
}

func (e emitter[V]) Emit(r Result[V]) { e.s.send(r) }
func (e emitter[V]) Value(v V)        { e.s.send(ValueResult(v)) }
func (e emitter[V]) End(end End)      { e.s.send(EndResult[V](end)) }

var errAlreadyEnded = &PreconditionError{Op: "emit", Message: "stage already produced a terminal end"}
