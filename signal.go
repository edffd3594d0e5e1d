package signalgraph

// Signal is a handle onto one stage's output: a directed, typed,
// one-way stream of Result[V] values (spec §2/§3). It is cheap to copy
// (it's just a pointer to the underlying stage) and is the type every
// primitive and combinator accepts as input and returns as output.
type Signal[V any] struct {
	st *stage[V]
}

func newSignal[V any](st *stage[V]) Signal[V] {
	return Signal[V]{st: st}
}

// valid reports whether this handle actually wraps a stage. The zero
// Signal[V] is invalid; it exists only so Signal[V] has a usable zero
// value, never as something to Subscribe to.
func (s Signal[V]) valid() bool { return s.st != nil }

// Name returns the stage's diagnostic name, used in logs.
func (s Signal[V]) Name() string {
	if !s.valid() {
		return ""
	}
	return s.st.name()
}

// subscribe is the internal attach entry point used by every combinator
// and by SignalOutput/SignalJunction: it registers onValue as a listener
// of the underlying stage, optionally tracking successorCore for
// activation-cascade and cycle-detection bookkeeping.
func (s Signal[V]) subscribe(successorCore *stageCore, onValue func(Result[V])) Lifetime {
	if !s.valid() {
		panicPrecondition("subscribe", "cannot subscribe to an invalid (zero-value) Signal")
	}
	return s.st.attach(successorCore, onValue)
}

// Subscribe attaches a plain callback to this signal. Unlike the internal
// subscribe used by combinators wiring themselves to their own inputs,
// Subscribe is a genuine terminal consumer: it carries its own throwaway
// stageCore purely so attaching (and later cancelling) it drives the same
// activation/deactivation cascade a combinator's subscription would,
// letting a bare source (Generate, Timer, FromChannel, CustomActivation)
// reached directly by Subscribe actually activate. Most callers building a
// graph should use a typed combinator or SignalOutput instead; Subscribe
// is the low-level escape hatch.
func (s Signal[V]) Subscribe(onValue func(Result[V])) Lifetime {
	return s.subscribe(newStageCore("subscriber"), onValue)
}
