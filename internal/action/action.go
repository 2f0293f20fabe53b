package action

import (
	"sort"
	"strings"

	"buildweaver/internal/artifact"
)

// Action is an opaque unit of work with declared inputs and outputs.
//
// Actions are identified by pointer: two distinct *Action values are different
// actions even if their fields match. An Action must not be mutated after it
// has been registered.
type Action struct {
	// Owner is the label of the target whose analysis created the action.
	Owner string

	// Mnemonic names the kind of work, e.g. "CppCompile" or "Middleman".
	Mnemonic string

	Inputs  []artifact.Artifact
	Outputs []artifact.Artifact

	key Key
}

// New returns an action with its inputs and outputs sorted and deduplicated.
func New(owner, mnemonic string, inputs, outputs []artifact.Artifact) *Action {
	a := &Action{
		Owner:    owner,
		Mnemonic: mnemonic,
		Inputs:   normalize(inputs),
		Outputs:  normalize(outputs),
	}
	a.key = ComputeKey(a)
	return a
}

// Key returns the action's content key. It is computed lazily for actions
// built as struct literals.
func (a *Action) Key() Key {
	if a.key == "" {
		a.key = ComputeKey(a)
	}
	return a.key
}

// ID is a stable, human-readable identifier: owner, mnemonic and a key prefix.
func (a *Action) ID() string {
	var b strings.Builder
	b.WriteString(a.Owner)
	b.WriteByte('/')
	b.WriteString(a.Mnemonic)
	b.WriteByte('@')
	k := a.Key().String()
	if len(k) > 16 {
		k = k[:16]
	}
	b.WriteString(k)
	return b.String()
}

// PrimaryOutput returns the first output in canonical order.
func (a *Action) PrimaryOutput() artifact.Artifact {
	if len(a.Outputs) == 0 {
		return artifact.Artifact{}
	}
	return a.Outputs[0]
}

func (a *Action) String() string {
	if a == nil {
		return "<nil action>"
	}
	return a.Mnemonic + " " + a.PrimaryOutput().ExecPath() + " (owner " + a.Owner + ")"
}

func normalize(in []artifact.Artifact) []artifact.Artifact {
	if len(in) == 0 {
		return nil
	}
	out := make([]artifact.Artifact, 0, len(in))
	seen := make(map[artifact.Artifact]struct{}, len(in))
	for _, a := range in {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return artifact.Less(out[i], out[j]) })
	return out
}
