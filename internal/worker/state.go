package worker

import "go.uber.org/atomic"

// State is a Poller's current phase.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// stateMachine is a lock-free State holder. Any state can transition to
// StateStopping; otherwise transitions follow Idle -> Polling ->
// Dispatching -> Idle.
type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) get() State {
	return State(m.v.Load())
}

func (m *stateMachine) set(s State) {
	for {
		cur := m.v.Load()
		if State(cur) == StateStopping {
			return
		}
		if m.v.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (m *stateMachine) stopping() bool {
	return m.get() == StateStopping
}
