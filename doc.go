// Package signalgraph provides a reactive signal-graph library: graphs of
// typed, push-based streams ([Signal]) that carry a [Result] of either a
// value or a terminal [End], propagate activation on demand, and are
// composed from a small set of primitive transforms ([Transform],
// [Combine2]..[Combine5], [Capture], [CustomActivation]).
//
// # Architecture
//
// Every Signal is backed by a [stage], which embeds a [stageCore] carrying
// the identity- and activation-protocol bookkeeping ([predecessorLink],
// [stageCore.activateUpward]) needed to cascade activation and deactivation
// through a graph whose stages are otherwise typed per-edge. A stage has no
// successors until something subscribes; the first subscription activates
// it (and recursively, everything upstream of it), and the last detach
// deactivates it again, unless its replayPolicy opts out (see
// [Continuous]).
//
// Where and when a stage's processor actually runs is controlled by its
// [ExecutionContext]: [Direct] runs inline, [NewMutexContext] and
// [NewRecursiveMutexContext] serialize onto a shared lock, [NewSerialQueueContext]
// and [NewThreadAsyncContext] dispatch onto a dedicated worker goroutine,
// [NewConcurrentPoolContext] spreads work across a bounded pool, and
// [NewThreadAffineContext] binds to one home goroutine (pinned with
// BindCurrentGoroutine, or the first to call Invoke) and queues calls from
// any other goroutine until the home goroutine calls Pump.
// [DebugContext] (context_debug.go) replaces wall-clock time with a
// manually-advanced virtual clock, for deterministic tests.
//
// # Multi-listener replay
//
// A bare stage supports exactly one listener. [Multicast], [Continuous],
// [ContinuousWhileActive], [Playback], and [CacheUntilActive] wrap a Signal
// in a stage whose replayPolicy both allows multiple listeners and decides
// what a newly-attached listener sees before it starts observing live
// values — see multilistener.go for the five variants' exact semantics.
//
// # Error handling
//
// Programmer errors (attaching twice to a single-listener stage, wiring a
// cycle) panic with a [PreconditionError]; panics raised from user-supplied
// processor functions are recovered and converted into a terminal [End]
// carrying a [PanicError], never crashing the stage's ExecutionContext.
//
// # Logging
//
// Every stage logs its activation transitions and any post-completion send
// through a [Logger] (github.com/joeycumines/logiface backed by
// github.com/joeycumines/logiface-slog), defaulting to slog.Default() until
// [SetLogger] or [SetSlogHandler] is called; [WithStageLogger] overrides the
// logger for one stage at construction.
package signalgraph
