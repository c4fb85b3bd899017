package adapter

import "sync/atomic"

// State is the re-entrancy guard state.
type State int32

const (
	Idle State = iota
	Propagating
)

func (s State) String() string {
	if s == Propagating {
		return "propagating"
	}
	return "idle"
}

// GuardEvent drives Guard transitions.
type GuardEvent int

const (
	// EventChange starts propagating a change.
	EventChange GuardEvent = iota
	// EventRearm returns to Idle once the propagating call has returned.
	EventRearm
)

// Guard is the Idle/Propagating state machine used to suppress changes that
// a handler triggers while one is already propagating.
type Guard struct {
	state atomic.Int32
}

// On applies ev and reports whether the transition was accepted. A change
// while Propagating is rejected; a rearm is always accepted.
func (g *Guard) On(ev GuardEvent) bool {
	switch ev {
	case EventChange:
		return g.state.CompareAndSwap(int32(Idle), int32(Propagating))
	case EventRearm:
		g.state.Store(int32(Idle))
		return true
	default:
		return false
	}
}

// State returns the current state.
func (g *Guard) State() State {
	return State(g.state.Load())
}
