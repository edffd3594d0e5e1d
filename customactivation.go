package signalgraph

import "sync"

// CustomActivation is the primitive that gives a stage control over its
// own activation moment (spec §4.5/§4.4): onActivate runs exactly once,
// each time the output transitions from inactive to activating (i.e. on
// first attach, and again on any later re-activation after having gone
// fully inactive), and may emit zero or more synthetic "initial values"
// through the Emitter before the live upstream feed is wired up.
//
// Resolves Open Question 1 (spec §9): the upstream subscription is only
// established once onActivate has returned, so initial values are always
// fully queued ahead of anything upstream could produce — they occupy the
// same FIFO replay cache as ordinary sent values (this stage uses the
// playback policy) and are never displaced by the first real send.
func CustomActivation[In, Out any](
	upstream Signal[In],
	ctx ExecutionContext,
	onActivate func(Emitter[Out]),
	process func(Result[In], Emitter[Out]),
) Signal[Out] {
	policy := &playbackPolicy[Out]{}
	out := newStage[Out]("custom-activation", ctx, policy)
	out.core.addPredecessor(upstream.st.core)
	em := emitter[Out]{s: out}

	var mu sync.Mutex
	var upstreamLifetime Lifetime

	out.core.onActivating = func() {
		safeInvoke(func() { onActivate(em) })

		mu.Lock()
		defer mu.Unlock()
		if upstreamLifetime != nil {
			return
		}
		upstreamLifetime = upstream.subscribe(out.core, func(r Result[In]) {
			defer func() {
				if rec := recover(); rec != nil {
					if end, ok := recoverToEnd(out.core.name, rec); ok {
						em.End(end)
					}
				}
			}()
			process(r, em)
		})
	}

	out.core.onInactive = func() {
		policy.onDeactivate()

		mu.Lock()
		lt := upstreamLifetime
		upstreamLifetime = nil
		mu.Unlock()

		if lt != nil {
			lt.Cancel()
		}
	}

	return newSignal(out)
}
