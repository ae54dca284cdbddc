package pipeline

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of one session.
type State string

const (
	StateEmpty        State = "EMPTY"
	StateInputReady   State = "INPUT_READY"
	StateTranscribing State = "TRANSCRIBING"
	StateTranscribed  State = "TRANSCRIBED"
	StateTranslating  State = "TRANSLATING"
	StateTranslated   State = "TRANSLATED"
)

// ErrInvalidTransition is returned for edges missing from the transition table.
var ErrInvalidTransition = errors.New("invalid state transition")

// Machine tracks one session's state. It is not safe for concurrent use;
// Session serializes access.
type Machine struct {
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateEmpty}
}

func (m *Machine) State() State {
	return m.state
}

// Transition moves to the target state if the edge is allowed.
func (m *Machine) Transition(to State) error {
	if !isValidTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}

// Reset returns to EMPTY from any state.
func (m *Machine) Reset() {
	m.state = StateEmpty
}

// Ready reports whether an input artifact is held.
func (m *Machine) Ready() bool {
	return m.state != StateEmpty
}

// HasTranscript reports whether transcript text may be exposed.
func (m *Machine) HasTranscript() bool {
	switch m.state {
	case StateTranscribed, StateTranslating, StateTranslated:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed session state machine edges.
// Any state may go to EMPTY.
func isValidTransition(from, to State) bool {
	if to == StateEmpty {
		return true
	}
	switch from {
	case StateEmpty:
		return to == StateInputReady
	case StateInputReady:
		return to == StateTranscribing
	case StateTranscribing:
		return to == StateTranscribed || to == StateInputReady
	case StateTranscribed:
		return to == StateTranslating
	case StateTranslating:
		return to == StateTranslated || to == StateTranscribed
	case StateTranslated:
		return to == StateTranslating
	default:
		return false
	}
}
