package analysis

import (
	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
	"buildweaver/internal/event"
)

// Snapshot is the read-only result of a finished session.
type Snapshot struct {
	Session       string
	Target        string
	Configuration string
	Actions       []*action.Action
	// Shared holds actions owned by other sessions that this session's
	// actions depend on, such as middlemen it found already created.
	Shared        []*action.Action
	Declared      []artifact.Artifact
	Orphans       []artifact.Artifact
	Events        []event.Event
	HasErrors     bool
}

// Outputs returns every output of the snapshot's actions in registration
// order.
func (s Snapshot) Outputs() []artifact.Artifact {
	var out []artifact.Artifact
	for _, act := range s.Actions {
		out = append(out, act.Outputs...)
	}
	return out
}
