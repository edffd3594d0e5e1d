package signalgraph

// InputHandle is the trait shared by every Input handle variant
// (SignalInput, SignalMultiInput, SignalMergedInput): a tagged sum
// replacing the single/multi/merged inheritance chain with three plain
// types sharing this interface, per the design notes' "class hierarchy
// replaced by tagged variants" guidance. Close/Cancel are idempotent:
// sending a terminal End to an already-ended stage is simply dropped
// (see stage.deliver), matching every variant's "dropping the handle
// closes the downstream" semantics without needing a GC finalizer.
type InputHandle[V any] interface {
	Close()
	Cancel()
}

// SignalInput is the write-side handle paired with a Signal created via
// Create: call Send/SendValue to push values into the graph, and
// SendEnd/Close to terminate it. It implements Emitter[V]. At most one
// concrete input exists per stage (the single variant of the Input handle
// tagged sum).
type SignalInput[V any] struct {
	st *stage[V]
}

func newSignalInput[V any](st *stage[V]) SignalInput[V] {
	return SignalInput[V]{st: st}
}

// Send pushes a single Result onto the signal. Sending anything after a
// terminal End has already been sent is a no-op (the stage logs and
// drops it); see stage.deliver.
func (in SignalInput[V]) Send(r Result[V]) { in.st.send(r) }

// SendValue is a convenience for Send(ValueResult(v)).
func (in SignalInput[V]) SendValue(v V) { in.st.send(ValueResult(v)) }

// SendEnd is a convenience for Send(EndResult(e)).
func (in SignalInput[V]) SendEnd(e End) { in.st.send(EndResult[V](e)) }

// Close terminates the signal with Closed(), the expected/successful
// termination reason.
func (in SignalInput[V]) Close() { in.SendEnd(Closed()) }

// Cancel terminates the signal with Cancelled(), as if a downstream
// consumer had walked away.
func (in SignalInput[V]) Cancel() { in.SendEnd(Cancelled()) }

var _ Emitter[struct{}] = SignalInput[struct{}]{}
var _ InputHandle[struct{}] = SignalInput[struct{}]{}

func (in SignalInput[V]) Emit(r Result[V]) { in.Send(r) }
func (in SignalInput[V]) Value(v V)        { in.SendValue(v) }
func (in SignalInput[V]) End(e End)        { in.SendEnd(e) }

// CreateMulti returns a fan-in Signal paired with the SignalMultiInput used
// to drive it: any number of goroutines may call Send concurrently, and any
// number of upstream Signals may be Bind-attached as additional producers.
func CreateMulti[V any](ctx ExecutionContext, opts ...StageOption) (Signal[V], SignalMultiInput[V]) {
	cfg := resolveStageOptions(opts)
	name := cfg.name
	if name == "" {
		name = "multi-input"
	}
	st := newStage[V](name, ctx, nil)
	if cfg.logger != nil {
		st.core.loggerOverride = cfg.logger
	}
	return newSignal(st), newSignalMultiInput(st)
}

// SignalMultiInput is the fan-in Input handle variant: it accepts any
// number of parallel Send callers plus any number of Bind-attached
// upstream Signals. Per-source ends from a bound Signal do NOT propagate
// downstream — the source is simply detached — matching spec §4.7/§7's
// "per-source ends never propagate; only explicit closing of the
// multi-input does" rule. Only Close/Cancel (the multi-input's own
// termination) closes the downstream stage.
type SignalMultiInput[V any] struct {
	st *stage[V]
}

func newSignalMultiInput[V any](st *stage[V]) SignalMultiInput[V] {
	return SignalMultiInput[V]{st: st}
}

// Send pushes a single value onto the fan-in, from any goroutine.
func (in SignalMultiInput[V]) Send(r Result[V]) {
	if r.IsEnd() {
		panicPrecondition("send", "SignalMultiInput.Send cannot carry a terminal End; per-source ends are swallowed by design, call Close or Cancel instead")
	}
	in.st.send(r)
}

// SendValue is a convenience for Send(ValueResult(v)).
func (in SignalMultiInput[V]) SendValue(v V) { in.st.send(ValueResult(v)) }

// Bind attaches source as an additional producer: every value source emits
// from now on is forwarded downstream, but source's own terminal End is
// swallowed (source is just detached) rather than closing the downstream.
func (in SignalMultiInput[V]) Bind(source Signal[V]) Lifetime {
	in.st.core.addPredecessor(source.st.core)
	return source.subscribe(in.st.core, func(r Result[V]) {
		if r.IsEnd() {
			return
		}
		in.st.send(r)
	})
}

// Close terminates the fan-in with Closed(), closing the downstream stage.
func (in SignalMultiInput[V]) Close() { in.st.send(EndResult[V](Closed())) }

// Cancel terminates the fan-in with Cancelled(), closing the downstream
// stage.
func (in SignalMultiInput[V]) Cancel() { in.st.send(EndResult[V](Cancelled())) }

var _ InputHandle[struct{}] = SignalMultiInput[struct{}]{}

// ClosePropagation controls, per Bind, whether a bound source's terminal
// End reaches a SignalMergedInput's downstream stage (spec §4.7/§7).
type ClosePropagation int

const (
	// ClosePropagationNone swallows every End from this source, like
	// SignalMultiInput.Bind.
	ClosePropagationNone ClosePropagation = iota
	// ClosePropagationErrorsOnly forwards only EndOther ends (unexpected
	// failures); closed/cancelled are swallowed.
	ClosePropagationErrorsOnly
	// ClosePropagationAll forwards every End from this source, closing the
	// downstream stage as soon as any one bound source ends.
	ClosePropagationAll
)

// CreateMerged returns a fan-in Signal paired with the SignalMergedInput
// used to drive it, where each Bind-attached source independently chooses
// whether its end propagates downstream.
func CreateMerged[V any](ctx ExecutionContext, opts ...StageOption) (Signal[V], SignalMergedInput[V]) {
	cfg := resolveStageOptions(opts)
	name := cfg.name
	if name == "" {
		name = "merged-input"
	}
	st := newStage[V](name, ctx, nil)
	if cfg.logger != nil {
		st.core.loggerOverride = cfg.logger
	}
	return newSignal(st), newSignalMergedInput(st)
}

// SignalMergedInput is the merged-fan-in Input handle variant: like
// SignalMultiInput, but each Bind attachment carries its own
// ClosePropagation policy.
type SignalMergedInput[V any] struct {
	st *stage[V]
}

func newSignalMergedInput[V any](st *stage[V]) SignalMergedInput[V] {
	return SignalMergedInput[V]{st: st}
}

// Send pushes a single value onto the fan-in, from any goroutine.
func (in SignalMergedInput[V]) Send(r Result[V]) {
	if r.IsEnd() {
		panicPrecondition("send", "SignalMergedInput.Send cannot carry a terminal End; use Close, Cancel, or a Bind's own propagation policy instead")
	}
	in.st.send(r)
}

// SendValue is a convenience for Send(ValueResult(v)).
func (in SignalMergedInput[V]) SendValue(v V) { in.st.send(ValueResult(v)) }

// Bind attaches source as an additional producer, applying policy to
// decide whether source's eventual terminal End reaches downstream.
func (in SignalMergedInput[V]) Bind(source Signal[V], policy ClosePropagation) Lifetime {
	in.st.core.addPredecessor(source.st.core)
	return source.subscribe(in.st.core, func(r Result[V]) {
		if r.IsValue() {
			in.st.send(r)
			return
		}
		if policy == ClosePropagationAll || (policy == ClosePropagationErrorsOnly && r.End().Reason == EndOther) {
			in.st.send(r)
		}
	})
}

// Close terminates the fan-in with Closed(), closing the downstream stage.
func (in SignalMergedInput[V]) Close() { in.st.send(EndResult[V](Closed())) }

// Cancel terminates the fan-in with Cancelled(), closing the downstream
// stage.
func (in SignalMergedInput[V]) Cancel() { in.st.send(EndResult[V](Cancelled())) }

var _ InputHandle[struct{}] = SignalMergedInput[struct{}]{}
