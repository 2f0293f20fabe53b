// Package buildconfig describes the configuration a target is analyzed under:
// the output roots its derived artifacts live in.
//
// Computing configurations is not done here; callers construct them.
package buildconfig

import (
	"fmt"
	"path"
	"strings"

	"buildweaver/internal/artifact"
)

// DefaultOutputBase is the exec-root-relative directory holding every
// configuration's output tree.
const DefaultOutputBase = "buildweaver-out"

// Configuration is the per-target build configuration as far as the analysis
// registry is concerned. It is a comparable value.
type Configuration struct {
	// Name is the configuration mnemonic, e.g. "k8-fastbuild".
	Name string

	BinRoot      artifact.Root
	GenfilesRoot artifact.Root
}

// New returns the configuration named name with roots under outputBase.
func New(outputBase, name string) (Configuration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Configuration{}, fmt.Errorf("configuration name is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return Configuration{}, fmt.Errorf("configuration name must not contain path separators: %q", name)
	}
	if strings.TrimSpace(outputBase) == "" {
		outputBase = DefaultOutputBase
	}
	base := path.Join(path.Clean(outputBase), name)
	return Configuration{
		Name:         name,
		BinRoot:      artifact.NewDerivedRoot("bin", path.Join(base, "bin")),
		GenfilesRoot: artifact.NewDerivedRoot("genfiles", path.Join(base, "genfiles")),
	}, nil
}

// Root resolves a root by its short name ("bin" or "genfiles").
func (c Configuration) Root(name string) (artifact.Root, bool) {
	switch name {
	case "", "bin":
		return c.BinRoot, true
	case "genfiles":
		return c.GenfilesRoot, true
	default:
		return artifact.Root{}, false
	}
}

func (c Configuration) String() string { return c.Name }
