package analysis

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a session.
type State string

const (
	StateActive    State = "ACTIVE"
	StateFinished  State = "FINISHED"
	StateDiscarded State = "DISCARDED"
)

var (
	ErrSessionNotActive   = errors.New("session is not active")
	ErrSessionNotFinished = errors.New("session is not finished")
)

// IsTerminal reports whether s accepts no further transitions.
func IsTerminal(s State) bool {
	return s == StateFinished || s == StateDiscarded
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateActive:
		return to == StateFinished || to == StateDiscarded
	default:
		return false
	}
}

// transitionLocked moves s from the expected state to the next one. The caller
// holds s.mu.
func (s *Session) transitionLocked(from, to State) error {
	if s.state != from {
		return fmt.Errorf("%w: session %s: expected %s, got %s", ErrSessionNotActive, s.target, from, s.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("session %s: disallowed transition %s -> %s", s.target, from, to)
	}
	s.state = to
	return nil
}
