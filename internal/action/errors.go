package action

import (
	"errors"
	"fmt"

	"buildweaver/internal/artifact"
)

var (
	ErrConflictingGeneratingAction = errors.New("conflicting generating action")
	ErrInvalidAction               = errors.New("invalid action")
	ErrRegistryClosed              = errors.New("action registry is closed")
)

// ConflictError reports two different actions declaring the same output.
//
// Existing is the action that won the output; Attempted is the action whose
// registration was rejected.
type ConflictError struct {
	Artifact  artifact.Artifact
	Existing  *Action
	Attempted *Action
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s is generated by %s (owner %s) and %s (owner %s)",
		ErrConflictingGeneratingAction, e.Artifact.ExecPath(),
		e.Existing.Mnemonic, e.Existing.Owner,
		e.Attempted.Mnemonic, e.Attempted.Owner)
}

func (e *ConflictError) Unwrap() error { return ErrConflictingGeneratingAction }

// ActionError wraps validation failures of a registration request.
type ActionError struct {
	Kind error
	Msg  string
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ActionError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &ActionError{Kind: ErrInvalidAction, Msg: fmt.Sprintf(format, args...)}
}
