package signalgraph

import "sync/atomic"

// ActivationState represents a stage's position in the activation
// lifecycle described by spec §4.3/§4.4.
//
// State Machine:
//
//	inactive (0)   → activating (1)   [first output attaches]
//	activating (1) → active (2)       [activation cascade finishes]
//	active (2)     → inactive (0)     [last subscriber departs, re-activatable]
//	inactive (0)   → complete (3)     [terminal end observed before activation]
//	activating (1) → complete (3)     [terminal end observed during activation]
//	active (2)     → complete (3)     [terminal end observed]
//	complete (3)   → (terminal, no further transitions)
//
// Only a terminal end completes a stage. A departing last subscriber always
// returns the stage to inactive; no stage completes on deactivation, one-shot
// sources included.
//
// Use TryTransition (CAS) for every transition; complete is the only
// state that, once stored, must never move again.
type ActivationState uint32

const (
	// StateInactive is the initial state: no live downstream path.
	StateInactive ActivationState = 0
	// StateActivating means a downstream output has initiated activation
	// and cached Results are being (or are about to be) replayed.
	StateActivating ActivationState = 1
	// StateActive means activation has completed; values flow normally.
	StateActive ActivationState = 2
	// StateComplete means a terminal end has traversed the stage. Terminal.
	StateComplete ActivationState = 3
)

// String implements fmt.Stringer.
func (s ActivationState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// activationFastState is a lock-free CAS state machine tracking a stage's
// activation lifecycle, independent of the stage's own mutex (which
// guards the mailbox/deferred queue, a separate concern).
type activationFastState struct {
	v atomic.Uint32
}

func newActivationFastState() *activationFastState {
	return &activationFastState{}
}

// Load returns the current state atomically.
func (s *activationFastState) Load() ActivationState {
	return ActivationState(s.v.Load())
}

// TryTransition attempts an atomic from→to transition, returning whether
// it succeeded.
func (s *activationFastState) TryTransition(from, to ActivationState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts a transition from any of validFrom to to,
// returning whether one succeeded.
func (s *activationFastState) TransitionAny(validFrom []ActivationState, to ActivationState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return true
		}
	}
	return false
}

// ForceComplete unconditionally stores StateComplete. Complete is
// terminal, so there is no CAS race to protect against other than the
// first writer winning; callers that need "only transition once" should
// prefer TransitionAny and check the result.
func (s *activationFastState) ForceComplete() {
	s.v.Store(uint32(StateComplete))
}

// IsComplete reports whether the state has reached the terminal state.
func (s *activationFastState) IsComplete() bool {
	return s.Load() == StateComplete
}

// IsLive reports whether the stage is activating or active (i.e. eligible
// to carry values, as opposed to being inactive or complete).
func (s *activationFastState) IsLive() bool {
	switch s.Load() {
	case StateActivating, StateActive:
		return true
	default:
		return false
	}
}
