package artifact

import "path"

// record is the immutable, interned state behind a handle.
type record struct {
	id   uint64
	root Root
	path string
	kind Kind
}

// Artifact is the canonical handle for a file or fileset location.
//
// Handles are small comparable values. Two handles obtained from the same Table
// are == iff their (Root, path) identity is equal, regardless of which session
// requested them or in which order. The zero Artifact is not a valid handle.
type Artifact struct {
	rec *record
}

// IsZero reports whether a is the zero (invalid) handle.
func (a Artifact) IsZero() bool { return a.rec == nil }

// ID returns the table-assigned sequence number. IDs are unique per Table and
// increase with interning order, but are not dense.
func (a Artifact) ID() uint64 {
	if a.rec == nil {
		return 0
	}
	return a.rec.id
}

func (a Artifact) Root() Root {
	if a.rec == nil {
		return Root{}
	}
	return a.rec.root
}

// RootRelativePath returns the cleaned path relative to Root.
func (a Artifact) RootRelativePath() string {
	if a.rec == nil {
		return ""
	}
	return a.rec.path
}

// ExecPath returns the path relative to the execution root.
func (a Artifact) ExecPath() string {
	if a.rec == nil {
		return ""
	}
	if a.rec.root.ExecPath == "" {
		return a.rec.path
	}
	return path.Join(a.rec.root.ExecPath, a.rec.path)
}

func (a Artifact) Kind() Kind {
	if a.rec == nil {
		return 0
	}
	return a.rec.kind
}

// IsSource reports whether a refers to a file in the source tree.
func (a Artifact) IsSource() bool { return a.Kind() == KindSource }

// ExemptFromStaleness reports whether content changes of a must not cause
// dependent actions to rerun. Only constant-metadata artifacts are exempt.
func (a Artifact) ExemptFromStaleness() bool { return a.Kind() == KindConstantMetadata }

func (a Artifact) String() string {
	if a.rec == nil {
		return "<invalid artifact>"
	}
	return a.rec.root.String() + a.rec.path
}

// Less orders artifacts by exec path, then by kind. It is used wherever a
// deterministic artifact order is required.
func Less(a, b Artifact) bool {
	ap, bp := a.ExecPath(), b.ExecPath()
	if ap != bp {
		return ap < bp
	}
	return a.Kind() < b.Kind()
}
