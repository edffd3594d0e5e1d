package signalgraph

import (
	"sync"
	"sync/atomic"
	"weak"
)

var nextStageID atomic.Uint64

func newStageID() uint64 { return nextStageID.Add(1) }

// stageCore is the V-independent bookkeeping every stage embeds: identity,
// activation state, and the predecessor/successor linkage used to
// propagate the activation protocol (spec §4.4) up and down a graph whose
// stages are otherwise typed per-edge and can't reference each other
// generically.
//
// Successor links are strong: a stage must be able to call every attached
// successor to deliver values, so nothing may collect a successor out from
// under it while it's still attached. The predecessor link is the
// reverse, and is weak: the stage that actually needs its producer kept
// alive holds that strong reference itself (in its own typed fields,
// wired up in stage.go); this bookkeeping link exists only to cascade
// activation and deactivation and detect cycles, and shouldn't by itself keep an
// abandoned chain from being collected. Grounded on eventloop/registry.go's
// weak.Pointer[promise] usage.
type stageCore struct {
	id    uint64
	name  string
	state *activationFastState

	mu           sync.Mutex
	predecessors []*predecessorLink
	successors   []*stageCore
	// onComplete holds closures registered by successors (or the graph
	// construction code) that want to hear about this stage reaching
	// StateComplete, carrying the terminal End.
	onComplete []func(End)
	// keepAliveWithoutSuccessors, set by policies that keep their cache
	// live, such as continuous, suppresses the inactive-on-zero-successors
	// transition: the stage stays active (and its predecessor stays
	// activated) even with no attached successors.
	keepAliveWithoutSuccessors bool

	// loggerOverride, if set via WithStageLogger, is used for this stage's
	// own log lines instead of the package-level default.
	loggerOverride *Logger

	// onInactive is set by stage.go at construction to the replayPolicy's
	// onDeactivate (e.g. playback and continuousWhileActive drop their
	// cache on deactivation); source constructors (Generate, Timer,
	// FromChannel, CustomActivation) set onActivating, and may replace
	// onInactive, to start and stop their own producers.
	onActivating func()
	onInactive   func()
}

// effectiveLogger returns this stage's logger override, or the package
// default if none was configured.
func (c *stageCore) effectiveLogger() *Logger {
	if c.loggerOverride != nil {
		return c.loggerOverride
	}
	return packageLogger()
}

func newStageCore(name string) *stageCore {
	return &stageCore{
		id:    newStageID(),
		name:  name,
		state: newActivationFastState(),
	}
}

// predecessorLink is a weak back-reference from a stage to its producer,
// recorded at construction time purely for activation-cascade and cycle
// detection.
type predecessorLink struct {
	id   uint64
	name string
	ref  weak.Pointer[stageCore]
}

func newPredecessorLink(p *stageCore) *predecessorLink {
	if p == nil {
		return nil
	}
	return &predecessorLink{id: p.id, name: p.name, ref: weak.Make(p)}
}

// resolve returns the live predecessor stageCore, or nil if it has already
// been collected.
func (l *predecessorLink) resolve() *stageCore {
	if l == nil {
		return nil
	}
	return l.ref.Value()
}

// addPredecessor wires up one of this stage's upstream producers (there
// may be more than one, e.g. a combine stage's N inputs). Must be called
// before the stage is exposed to any successor (i.e. during construction).
func (c *stageCore) addPredecessor(p *stageCore) {
	if p == nil {
		return
	}
	c.predecessors = append(c.predecessors, newPredecessorLink(p))
}

// replacePredecessors overwrites c's entire predecessor list, unlike
// addPredecessor's append-only construction-time wiring. SignalJunction is
// the one stage whose upstream can legitimately change after construction
// (Disconnect then Bind to a different source), so it alone needs to drop
// a stale predecessor link rather than accumulate them.
func (c *stageCore) replacePredecessors(preds ...*stageCore) {
	links := make([]*predecessorLink, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			links = append(links, newPredecessorLink(p))
		}
	}
	c.mu.Lock()
	c.predecessors = links
	c.mu.Unlock()
}

// wouldCycle reports whether attaching candidate as a successor of c would
// create a cycle, i.e. candidate already appears somewhere upstream of c.
func (c *stageCore) wouldCycle(candidate *stageCore) bool {
	if c.id == candidate.id {
		return true
	}
	for _, link := range c.predecessors {
		if p := link.resolve(); p != nil && p.wouldCycle(candidate) {
			return true
		}
	}
	return false
}

// attachSuccessor registers successor as a listener of c, cascading
// activation upward through the predecessor chain on the first attach.
// Panics with a PreconditionError if this would create a cycle.
func (c *stageCore) attachSuccessor(successor *stageCore) {
	if c.wouldCycle(successor) {
		panicPrecondition("attach", "stage %q cannot attach to its own descendant %q", successor.name, c.name)
	}

	c.mu.Lock()
	first := len(c.successors) == 0
	c.successors = append(c.successors, successor)
	c.mu.Unlock()

	if first {
		c.activateUpward()
	}
}

// detachSuccessor removes successor from c's listener set, cascading
// deactivation upward through the predecessor chain once the last
// successor departs (unless keepAliveWithoutSuccessors suppresses it).
func (c *stageCore) detachSuccessor(successor *stageCore) {
	c.mu.Lock()
	for i, s := range c.successors {
		if s.id == successor.id {
			c.successors = append(c.successors[:i], c.successors[i+1:]...)
			break
		}
	}
	empty := len(c.successors) == 0
	keepAlive := c.keepAliveWithoutSuccessors
	c.mu.Unlock()

	if empty && !keepAlive {
		c.deactivateUpward()
	}
}

// activateUpward transitions c from inactive to activating, runs its
// onActivating hook, recursively activates its own predecessors, and then
// moves c on to active (unless the hook or the cascade already completed or
// deactivated it).
func (c *stageCore) activateUpward() {
	if !c.state.TryTransition(StateInactive, StateActivating) {
		return
	}
	logStageActivation(c.effectiveLogger(), c.name, StateInactive, StateActivating)
	if c.onActivating != nil {
		c.onActivating()
	}
	for _, link := range c.predecessors {
		if p := link.resolve(); p != nil {
			p.activateUpward()
		}
	}
	if c.state.TryTransition(StateActivating, StateActive) {
		logStageActivation(c.effectiveLogger(), c.name, StateActivating, StateActive)
	}
}

// deactivateUpward transitions c back to inactive if it is currently
// active/activating (and not complete), and recursively deactivates its
// own predecessor. A stage that has already reached StateComplete is left
// alone: completion is terminal.
func (c *stageCore) deactivateUpward() {
	if c.state.IsComplete() {
		return
	}
	if !c.state.TransitionAny([]ActivationState{StateActivating, StateActive}, StateInactive) {
		return
	}
	logStageActivation(c.effectiveLogger(), c.name, StateActive, StateInactive)
	if c.onInactive != nil {
		c.onInactive()
	}
	for _, link := range c.predecessors {
		if p := link.resolve(); p != nil {
			p.deactivateUpward()
		}
	}
}

// markComplete transitions c to the terminal state (idempotent) and fans
// the terminal End out to every registered onComplete listener.
func (c *stageCore) markComplete(end End) {
	wasAlreadyComplete := !c.state.TransitionAny(
		[]ActivationState{StateInactive, StateActivating, StateActive},
		StateComplete,
	)
	if wasAlreadyComplete {
		return
	}
	logStageActivation(c.effectiveLogger(), c.name, StateActive, StateComplete)

	c.mu.Lock()
	listeners := append([]func(End){}, c.onComplete...)
	c.mu.Unlock()

	for _, f := range listeners {
		f(end)
	}
}

// onCompleteFunc registers f to run (on whatever goroutine markComplete is
// called from) when this stage reaches StateComplete.
func (c *stageCore) onCompleteFunc(f func(End)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = append(c.onComplete, f)
}
