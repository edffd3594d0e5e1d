package signalgraph

import "sync"

// This file implements the five multi-listener replay policies from spec
// §4.6. Each is a thin Signal-to-Signal wrapper: it creates a new stage
// that subscribes to its upstream and re-emits through the named policy,
// so any of them can be layered onto the output of a transform, combine,
// capture, or customActivation stage (bare transform and combine outputs
// are single-listener, per stage.go's bufferUntilAttachPolicy; capture's
// Signal and customActivation already cache and admit several listeners).

// multicastPolicy broadcasts live values to every attached listener, with
// no replay and no retained cache: a listener that attaches after a value
// was sent simply never sees it.
type multicastPolicy[V any] struct{}

func (*multicastPolicy[V]) onAttach(func(Result[V]))          {}
func (*multicastPolicy[V]) onSend(Result[V])                  {}
func (*multicastPolicy[V]) allowMultiple() bool                { return true }
func (*multicastPolicy[V]) keepsAliveWithoutSuccessors() bool  { return false }
func (*multicastPolicy[V]) onDeactivate()                      {}

// Multicast returns a multi-listener Signal that broadcasts s's values
// live to every attached listener, with no replay.
func Multicast[V any](s Signal[V], ctx ExecutionContext) Signal[V] {
	return wrapPolicy(s, "multicast", ctx, &multicastPolicy[V]{})
}

// latestCachePolicy is shared by continuous and continuousWhileActive:
// both retain only the single latest value (and the terminal End, if any)
// and replay it to each new listener.
type latestCachePolicy[V any] struct {
	mu       sync.Mutex
	has      bool
	last     Result[V]
	keepLive bool
}

func (p *latestCachePolicy[V]) onAttach(deliver func(Result[V])) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.has {
		deliver(p.last)
	}
}
func (p *latestCachePolicy[V]) onSend(r Result[V]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.has = true
	p.last = r
}
func (p *latestCachePolicy[V]) allowMultiple() bool               { return true }
func (p *latestCachePolicy[V]) keepsAliveWithoutSuccessors() bool { return p.keepLive }
func (p *latestCachePolicy[V]) onDeactivate() {
	if p.keepLive {
		return
	}
	p.mu.Lock()
	p.has = false
	var zero Result[V]
	p.last = zero
	p.mu.Unlock()
}

// Continuous returns a multi-listener Signal caching the latest value: it
// replays the most recent value (and stays active, keeping its upstream
// activated) even with zero current listeners, so a later subscriber
// always gets the last known value immediately upon attaching.
func Continuous[V any](s Signal[V], ctx ExecutionContext) Signal[V] {
	return wrapPolicy(s, "continuous", ctx, &latestCachePolicy[V]{keepLive: true})
}

// ContinuousWhileActive is Continuous, except the wrapper stage (and its
// upstream) is allowed to go inactive once its last listener detaches; the
// cached value is dropped at that point, and re-subscribing after that
// starts the upstream over from scratch.
func ContinuousWhileActive[V any](s Signal[V], ctx ExecutionContext) Signal[V] {
	return wrapPolicy(s, "continuous-while-active", ctx, &latestCachePolicy[V]{keepLive: false})
}

// playbackPolicy retains every Result ever sent (in order) and replays the
// full history to each new listener; the history is dropped once the
// stage goes inactive, so a later re-activation starts with an empty
// history rather than replaying stale data from a previous activation.
type playbackPolicy[V any] struct {
	mu      sync.Mutex
	history []Result[V]
}

func (p *playbackPolicy[V]) onAttach(deliver func(Result[V])) {
	p.mu.Lock()
	snapshot := append([]Result[V]{}, p.history...)
	p.mu.Unlock()
	for _, r := range snapshot {
		deliver(r)
	}
}
func (p *playbackPolicy[V]) onSend(r Result[V]) {
	p.mu.Lock()
	p.history = append(p.history, r)
	p.mu.Unlock()
}
func (p *playbackPolicy[V]) allowMultiple() bool               { return true }
func (p *playbackPolicy[V]) keepsAliveWithoutSuccessors() bool { return false }
func (p *playbackPolicy[V]) onDeactivate() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

// Playback returns a multi-listener Signal that replays every value sent
// since the stage was created or last went inactive to each new listener,
// in order.
func Playback[V any](s Signal[V], ctx ExecutionContext) Signal[V] {
	return wrapPolicy(s, "playback", ctx, &playbackPolicy[V]{})
}

// cacheUntilActivePolicy buffers every Result sent before the first
// listener attaches, replays that buffer (and only that buffer) to the
// first listener, then behaves as a plain live multicast from then on:
// it exists to avoid losing values sent during the brief window while a
// stage is activating and no listener has attached yet.
type cacheUntilActivePolicy[V any] struct {
	mu          sync.Mutex
	buffered    []Result[V]
	everAttached bool
}

func (p *cacheUntilActivePolicy[V]) onAttach(deliver func(Result[V])) {
	p.mu.Lock()
	var snapshot []Result[V]
	if !p.everAttached {
		snapshot = p.buffered
		p.buffered = nil
		p.everAttached = true
	}
	p.mu.Unlock()
	for _, r := range snapshot {
		deliver(r)
	}
}
func (p *cacheUntilActivePolicy[V]) onSend(r Result[V]) {
	p.mu.Lock()
	if !p.everAttached {
		p.buffered = append(p.buffered, r)
	}
	p.mu.Unlock()
}
func (p *cacheUntilActivePolicy[V]) allowMultiple() bool               { return true }
func (p *cacheUntilActivePolicy[V]) keepsAliveWithoutSuccessors() bool { return false }
func (p *cacheUntilActivePolicy[V]) onDeactivate() {
	p.mu.Lock()
	p.buffered = nil
	p.everAttached = false
	p.mu.Unlock()
}

// CacheUntilActive returns a multi-listener Signal that buffers values
// sent before any listener has ever attached, delivers that backlog to the
// first listener, and behaves as a plain multicast afterward.
func CacheUntilActive[V any](s Signal[V], ctx ExecutionContext) Signal[V] {
	return wrapPolicy(s, "cache-until-active", ctx, &cacheUntilActivePolicy[V]{})
}

// wrapPolicy builds the common "new stage subscribing to s, re-emitting
// through policy" shape shared by every combinator in this file.
func wrapPolicy[V any](s Signal[V], name string, ctx ExecutionContext, policy replayPolicy[V]) Signal[V] {
	out := newStage[V](name, ctx, policy)
	out.core.addPredecessor(s.st.core)
	s.subscribe(out.core, func(r Result[V]) { out.send(r) })
	return newSignal(out)
}
