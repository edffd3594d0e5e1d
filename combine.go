package signalgraph

import "sync"

// combineBase is the shared plumbing every Combine arity builds on: an
// output stage predecessor-linked to every input, and a panic-safe call to
// the user's combiner function.
func combineBase[Out any](ctx ExecutionContext, preds ...*stageCore) (*stage[Out], emitter[Out]) {
	out := newStage[Out]("combine", ctx, &bufferUntilAttachPolicy[Out]{})
	for _, p := range preds {
		out.core.addPredecessor(p)
	}
	return out, emitter[Out]{s: out}
}

func combineEmit[Out any](out *stage[Out], em emitter[Out], f func() Out) {
	var result Out
	var rec any
	func() {
		defer func() { rec = recover() }()
		result = f()
	}()
	if rec != nil {
		if end, ok := recoverToEnd(out.core.name, rec); ok {
			em.End(end)
		}
		return
	}
	em.Value(result)
}

// Combine2 emits f(a, b) every time either input produces a value, once
// both have produced at least one (a CombineLatest shape). The combined
// signal ends as soon as either input ends, forwarding that End.
func Combine2[A, B, Out any](a Signal[A], b Signal[B], ctx ExecutionContext, f func(A, B) Out) Signal[Out] {
	out, em := combineBase[Out](ctx, a.st.core, b.st.core)

	var mu sync.Mutex
	var curA A
	var curB B
	var hasA, hasB bool

	ready := func() bool { return hasA && hasB }

	a.subscribe(out.core, func(r Result[A]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curA, hasA = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB) })
		}
	})
	b.subscribe(out.core, func(r Result[B]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curB, hasB = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB) })
		}
	})

	return newSignal(out)
}

// Combine3 is Combine2 generalized to three inputs.
func Combine3[A, B, C, Out any](a Signal[A], b Signal[B], c Signal[C], ctx ExecutionContext, f func(A, B, C) Out) Signal[Out] {
	out, em := combineBase[Out](ctx, a.st.core, b.st.core, c.st.core)

	var mu sync.Mutex
	var curA A
	var curB B
	var curC C
	var hasA, hasB, hasC bool

	ready := func() bool { return hasA && hasB && hasC }

	a.subscribe(out.core, func(r Result[A]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curA, hasA = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC) })
		}
	})
	b.subscribe(out.core, func(r Result[B]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curB, hasB = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC) })
		}
	})
	c.subscribe(out.core, func(r Result[C]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curC, hasC = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC) })
		}
	})

	return newSignal(out)
}

// Combine4 is Combine2 generalized to four inputs.
func Combine4[A, B, C, D, Out any](a Signal[A], b Signal[B], c Signal[C], d Signal[D], ctx ExecutionContext, f func(A, B, C, D) Out) Signal[Out] {
	out, em := combineBase[Out](ctx, a.st.core, b.st.core, c.st.core, d.st.core)

	var mu sync.Mutex
	var curA A
	var curB B
	var curC C
	var curD D
	var hasA, hasB, hasC, hasD bool

	ready := func() bool { return hasA && hasB && hasC && hasD }

	a.subscribe(out.core, func(r Result[A]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curA, hasA = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD) })
		}
	})
	b.subscribe(out.core, func(r Result[B]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curB, hasB = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD) })
		}
	})
	c.subscribe(out.core, func(r Result[C]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curC, hasC = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD) })
		}
	})
	d.subscribe(out.core, func(r Result[D]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curD, hasD = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD) })
		}
	})

	return newSignal(out)
}

// Combine5 is Combine2 generalized to five inputs.
func Combine5[A, B, C, D, E, Out any](a Signal[A], b Signal[B], c Signal[C], d Signal[D], e Signal[E], ctx ExecutionContext, f func(A, B, C, D, E) Out) Signal[Out] {
	out, em := combineBase[Out](ctx, a.st.core, b.st.core, c.st.core, d.st.core, e.st.core)

	var mu sync.Mutex
	var curA A
	var curB B
	var curC C
	var curD D
	var curE E
	var hasA, hasB, hasC, hasD, hasE bool

	ready := func() bool { return hasA && hasB && hasC && hasD && hasE }

	a.subscribe(out.core, func(r Result[A]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curA, hasA = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD, curE) })
		}
	})
	b.subscribe(out.core, func(r Result[B]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curB, hasB = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD, curE) })
		}
	})
	c.subscribe(out.core, func(r Result[C]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curC, hasC = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD, curE) })
		}
	})
	d.subscribe(out.core, func(r Result[D]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curD, hasD = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD, curE) })
		}
	})
	e.subscribe(out.core, func(r Result[E]) {
		mu.Lock()
		defer mu.Unlock()
		if r.IsEnd() {
			em.End(r.End())
			return
		}
		curE, hasE = r.Value(), true
		if ready() {
			combineEmit(out, em, func() Out { return f(curA, curB, curC, curD, curE) })
		}
	})

	return newSignal(out)
}
