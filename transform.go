package signalgraph

// Transform is the most general primitive (spec §4.5): process runs once
// per incoming Result[In], with an Emitter[Out] it may call zero or more
// times (enabling filter/flatMap-shaped transforms, not just 1:1 maps). A
// panic inside process is recovered and turned into a terminal End on the
// output, tagged with the output stage's name, the same way every
// processor invocation in this package handles panics.
func Transform[In, Out any](s Signal[In], ctx ExecutionContext, process func(Result[In], Emitter[Out])) Signal[Out] {
	out := newStage[Out]("transform", ctx, &bufferUntilAttachPolicy[Out]{})
	out.core.addPredecessor(s.st.core)
	em := emitter[Out]{s: out}

	s.subscribe(out.core, func(r Result[In]) {
		defer func() {
			if rec := recover(); rec != nil {
				if end, ok := recoverToEnd(out.core.name, rec); ok {
					em.End(end)
				}
			}
		}()
		process(r, em)
	})

	return newSignal(out)
}

// Map is Transform specialized to a pure 1:1 value conversion: End results
// pass through unchanged, and every value is replaced by f(v).
func Map[In, Out any](s Signal[In], ctx ExecutionContext, f func(In) Out) Signal[Out] {
	return Transform(s, ctx, func(r Result[In], em Emitter[Out]) {
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		em.Value(f(r.Value()))
	})
}

// Filter is Transform specialized to drop values for which keep returns
// false; End results always pass through.
func Filter[V any](s Signal[V], ctx ExecutionContext, keep func(V) bool) Signal[V] {
	return Transform(s, ctx, func(r Result[V], em Emitter[V]) {
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		if keep(r.Value()) {
			em.Value(r.Value())
		}
	})
}

// FlatMap is Transform specialized to a 1:N value conversion: every value
// produces a slice of zero or more output values, emitted in order. End
// results pass through unchanged.
func FlatMap[In, Out any](s Signal[In], ctx ExecutionContext, f func(In) []Out) Signal[Out] {
	return Transform(s, ctx, func(r Result[In], em Emitter[Out]) {
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		for _, v := range f(r.Value()) {
			em.Value(v)
		}
	})
}

// Scan folds f over every value s produces, starting from seed, emitting
// the running accumulator after each value. End results pass through
// unchanged; the accumulator itself is never exposed after a terminal End.
func Scan[In, Out any](s Signal[In], ctx ExecutionContext, seed Out, f func(acc Out, v In) Out) Signal[Out] {
	acc := seed
	return Transform(s, ctx, func(r Result[In], em Emitter[Out]) {
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		acc = f(acc, r.Value())
		em.Value(acc)
	})
}
