package state

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a test network session: Created,
// Bootstrapped, Started, Running, Failed, or Stopped
type State uint32

const (
	// Created is the state of a session whose directory exists but whose
	// network has not been bootstrapped yet.
	Created State = iota

	// Bootstrapped is the state in which the shared network configuration has
	// been prepared and no node has been started.
	Bootstrapped

	// Started is the state in which every node process has been launched but
	// not all of them have reported running.
	Started

	// Running is the state in which every node has reported running.
	Running

	// Failed is the state of a session that hit a fatal error. A failed
	// session can only be stopped.
	Failed

	// Stopped is the terminal state, reached once every node was shut down.
	Stopped
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Bootstrapped:
		return "Bootstrapped"
	case Started:
		return "Started"
	case Running:
		return "Running"
	case Failed:
		return "Failed"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// transitions lists the allowed predecessors of every state.
var transitions = map[State][]State{
	Bootstrapped: {Created},
	Started:      {Bootstrapped},
	Running:      {Started},
	Failed:       {Created, Bootstrapped, Started, Running},
	Stopped:      {Created, Bootstrapped, Started, Running, Failed},
}

// Allowed reports whether a session may move from one state to another.
func Allowed(from, to State) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Manager wraps a State with a lock-free getter and guarded transitions. It
// also remembers the first failure of the session, which outlives the Failed
// state once the session is stopped.
type Manager struct {
	state State

	mu      sync.Mutex
	failure error
}

// GetState returns the current state.
func (m *Manager) GetState() State {
	stateAddr := (*uint32)(&m.state)
	return State(atomic.LoadUint32(stateAddr))
}

// Transition moves to the given state if the move is allowed from the current
// one, and returns the state it moved from.
func (m *Manager) Transition(to State) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transition(to)
}

func (m *Manager) transition(to State) (State, bool) {
	stateAddr := (*uint32)(&m.state)
	from := State(atomic.LoadUint32(stateAddr))

	if !Allowed(from, to) {
		return from, false
	}

	atomic.StoreUint32(stateAddr, uint32(to))

	return from, true
}

// Fail records err as the failure of the session, unless one was recorded
// before, and moves to Failed. It returns false if the session had already
// failed or was stopped.
func (m *Manager) Fail(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure == nil {
		m.failure = err
	}

	_, ok := m.transition(Failed)
	return ok
}

// Failure returns the first recorded failure, or nil.
func (m *Manager) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// HasFailed reports whether a failure was ever recorded.
func (m *Manager) HasFailed() bool {
	return m.Failure() != nil
}
