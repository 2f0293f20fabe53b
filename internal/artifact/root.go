package artifact

import "path"

// Root is the opaque base directory an artifact path is relative to.
//
// Root is a comparable value; two roots are the same root iff all fields match.
type Root struct {
	// Name is a short tag such as "bin" or "genfiles".
	Name string

	// ExecPath is the root's location relative to the execution root. It is
	// empty for the source root.
	ExecPath string

	// Source marks the source tree. Derived artifacts may not live under it.
	Source bool
}

// Well-known build-global roots.
var (
	SourceRoot        = Root{Name: "source", Source: true}
	EmbeddedToolsRoot = Root{Name: "embedded_tools", ExecPath: "_bin/embedded_tools"}
	MiddlemanRoot     = Root{Name: "middlemen", ExecPath: "buildweaver-out/_middlemen"}
)

// NewDerivedRoot returns an output root located at execPath.
func NewDerivedRoot(name, execPath string) Root {
	return Root{Name: name, ExecPath: path.Clean(execPath)}
}

// IsZero reports whether r is the zero Root.
func (r Root) IsZero() bool { return r == Root{} }

func (r Root) String() string {
	if r.ExecPath == "" {
		return "[" + r.Name + "]"
	}
	return "[" + r.Name + ":" + r.ExecPath + "]"
}
