// Package event collects analysis diagnostics for one session.
//
// A Sink accumulates events instead of failing fast, so one session can report
// several independent problems before the caller decides to drop its output.
package event

import (
	"errors"
	"fmt"
	"sort"
)

// Severity orders diagnostics. Only SeverityError makes a session unusable.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Code is a stable, machine-readable diagnostic category. The values appear in
// reports; do not rename.
type Code string

const (
	CodeConflictingGeneratingAction Code = "ConflictingGeneratingAction"
	CodeInconsistentArtifactKind    Code = "InconsistentArtifactKind"
	CodeOrphanArtifact              Code = "OrphanArtifact"
	CodeInvalidRequest              Code = "InvalidRequest"
	CodeRuleError                   Code = "RuleError"
	CodeActionGraph                 Code = "ActionGraph"
)

// Event is a single analysis diagnostic.
type Event struct {
	Severity Severity `json:"severity" cbor:"severity"`
	Code     Code     `json:"code" cbor:"code"`
	Target   string   `json:"target,omitempty" cbor:"target,omitempty"`
	Message  string   `json:"message" cbor:"message"`

	// Artifacts lists exec paths the diagnostic refers to.
	Artifacts []string `json:"artifacts,omitempty" cbor:"artifacts,omitempty"`
}

func (e Event) String() string {
	if e.Target == "" {
		return fmt.Sprintf("%s [%s] %s", e.Severity, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s [%s] %s", e.Severity, e.Target, e.Code, e.Message)
}

// Validate checks the minimal invariants of an event.
func (e Event) Validate() error {
	if e.Code == "" {
		return errors.New("event code is required")
	}
	if e.Message == "" {
		return errors.New("event message is required")
	}
	for i, a := range e.Artifacts {
		if a == "" {
			return fmt.Errorf("artifacts[%d] is empty", i)
		}
	}
	return nil
}

// Canonicalize sorts events by (target, severity desc, code, message,
// artifacts) and sorts each event's artifacts, producing an order independent
// of reporting order.
func Canonicalize(events []Event) {
	for i := range events {
		if len(events[i].Artifacts) == 0 {
			events[i].Artifacts = nil
			continue
		}
		art := make([]string, len(events[i].Artifacts))
		copy(art, events[i].Artifacts)
		sort.Strings(art)
		events[i].Artifacts = art
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return lessStrings(a.Artifacts, b.Artifacts)
	})
}

func lessStrings(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
