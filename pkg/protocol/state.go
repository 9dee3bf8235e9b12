package protocol

import "sync/atomic"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// State is the connection lifecycle state machine. Every Conn starts
// NotInitialized and only ever moves forward; there is no path back to an
// earlier state.
type State int32

const (
	NotInitialized State = iota
	Initializing
	Initialized
	ShuttingDown
	Shutdown
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "not_initialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case ShuttingDown:
		return "shutting_down"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

///////////////////////////////////////////////////////////////////////////////
// STATE HOLDER

// stateHolder is an atomically-updated State with a forward-only transition
// guard so concurrent callers can't race a connection backwards.
type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) get() State {
	return State(h.v.Load())
}

// transition moves to `to` iff the current state equals from (a
// compare-and-set, e.g. Initializing -> Initialized). It reports whether
// the transition happened.
func (h *stateHolder) transition(from, to State) bool {
	return h.v.CompareAndSwap(int32(from), int32(to))
}

// forceTo forces the value regardless of current state; used for Shutdown,
// which must always succeed.
func (h *stateHolder) forceTo(to State) {
	h.v.Store(int32(to))
}
