// Package rule reads a declarative build description and analyzes its targets
// against an analysis session.
//
// A description lists configurations and targets. Each target declares named
// artifacts and the actions, middlemen and build-info lookups that connect
// them. Names are local to the target; "//label#name" refers to an artifact
// declared by another target.
package rule

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"buildweaver/internal/artifact"
	"buildweaver/internal/buildconfig"
	"buildweaver/internal/buildinfo"
)

// ErrInvalidDescription wraps every validation failure of a description.
var ErrInvalidDescription = errors.New("invalid build description")

// Description is a parsed build description.
type Description struct {
	OutputBase     string              `yaml:"output_base"`
	BuildInfoKeys  []string            `yaml:"build_info_keys"`
	Configurations []ConfigurationSpec `yaml:"configurations"`
	Targets        []*Target           `yaml:"targets"`

	configs map[string]buildconfig.Configuration
	targets map[string]*Target
}

type ConfigurationSpec struct {
	Name string `yaml:"name"`
}

// Target is one configured target.
type Target struct {
	Label         string            `yaml:"label"`
	Configuration string            `yaml:"configuration"`
	Sources       []FileSpec        `yaml:"sources"`
	Tools         []FileSpec        `yaml:"tools"`
	Artifacts     []ArtifactSpec    `yaml:"artifacts"`
	BuildInfo     []BuildInfoSpec   `yaml:"build_info"`
	Aggregations  []AggregationSpec `yaml:"aggregations"`
	Actions       []ActionSpec      `yaml:"actions"`

	desc     *Description
	declared map[string]ArtifactSpec
}

// FileSpec names a source file or an embedded tool.
type FileSpec struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ArtifactSpec declares an output of the target.
type ArtifactSpec struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// Root is bin (default) or genfiles.
	Root string `yaml:"root"`
	// Kind is derived (default), constant-metadata or fileset.
	Kind string `yaml:"kind"`
}

// BuildInfoSpec binds a name to the build-info artifacts of Key.
type BuildInfoSpec struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// AggregationSpec binds a name to the middleman over Inputs.
type AggregationSpec struct {
	Name    string   `yaml:"name"`
	Purpose string   `yaml:"purpose"`
	Inputs  []string `yaml:"inputs"`
}

// ActionSpec is an action registered by the target.
type ActionSpec struct {
	Mnemonic string   `yaml:"mnemonic"`
	Inputs   []string `yaml:"inputs"`
	Outputs  []string `yaml:"outputs"`
}

// Option adjusts how a description is loaded.
type Option func(*Description)

// WithDefaultOutputBase sets the output base used when the description does
// not name one.
func WithDefaultOutputBase(base string) Option {
	return func(d *Description) {
		if strings.TrimSpace(d.OutputBase) == "" {
			d.OutputBase = base
		}
	}
}

// Load reads and validates the description at path.
func Load(path string, opts ...Option) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build description: %w", err)
	}
	d, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a description. Unknown fields are rejected.
func Parse(data []byte, opts ...Option) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	for _, opt := range opts {
		opt(&d)
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return &d, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDescription, fmt.Sprintf(format, args...))
}

func (d *Description) init() error {
	var errs []error

	d.configs = make(map[string]buildconfig.Configuration, len(d.Configurations))
	for _, c := range d.Configurations {
		cfg, err := buildconfig.New(d.OutputBase, c.Name)
		if err != nil {
			errs = append(errs, invalidf("configuration: %v", err))
			continue
		}
		if _, dup := d.configs[cfg.Name]; dup {
			errs = append(errs, invalidf("duplicate configuration %q", cfg.Name))
			continue
		}
		d.configs[cfg.Name] = cfg
	}
	for _, k := range d.BuildInfoKeys {
		if _, err := buildinfo.ParseKey(k); err != nil {
			errs = append(errs, invalidf("build_info_keys: %v", err))
		}
	}

	d.targets = make(map[string]*Target, len(d.Targets))
	for i, t := range d.Targets {
		if t == nil {
			errs = append(errs, invalidf("targets[%d] is empty", i))
			continue
		}
		if !strings.HasPrefix(t.Label, "//") {
			errs = append(errs, invalidf("target label must start with //: %q", t.Label))
			continue
		}
		if _, dup := d.targets[t.Label]; dup {
			errs = append(errs, invalidf("duplicate target %s", t.Label))
			continue
		}
		t.desc = d
		t.declared = make(map[string]ArtifactSpec, len(t.Artifacts))
		for _, a := range t.Artifacts {
			t.declared[a.Name] = a
		}
		d.targets[t.Label] = t
	}
	for _, label := range d.Labels() {
		errs = append(errs, d.targets[label].validate()...)
	}
	return errors.Join(errs...)
}

func (t *Target) validate() []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, invalidf("%s: %s", t.Label, fmt.Sprintf(format, args...)))
	}

	if _, ok := t.desc.configs[t.Configuration]; !ok {
		fail("unknown configuration %q", t.Configuration)
	}

	names := make(map[string]struct{})
	claim := func(section, name string) {
		switch {
		case name == "":
			fail("%s entry without a name", section)
		case strings.ContainsAny(name, "#/"):
			fail("%s name %q must not contain '#' or '/'", section, name)
		default:
			if _, dup := names[name]; dup {
				fail("name %q is defined twice", name)
			}
			names[name] = struct{}{}
		}
	}

	for _, f := range t.Sources {
		claim("sources", f.Name)
	}
	for _, f := range t.Tools {
		claim("tools", f.Name)
	}
	for _, a := range t.Artifacts {
		claim("artifacts", a.Name)
		if _, ok := rootName(a.Root); !ok {
			fail("artifact %q: unknown root %q", a.Name, a.Root)
		}
		if _, err := declaredKind(a.Kind); err != nil {
			fail("artifact %q: %v", a.Name, err)
		}
	}
	for _, b := range t.BuildInfo {
		claim("build_info", b.Name)
		if _, err := buildinfo.ParseKey(b.Key); err != nil {
			fail("build_info %q: %v", b.Name, err)
		}
	}
	for _, g := range t.Aggregations {
		claim("aggregations", g.Name)
	}

	refs := func(where string, list []string) {
		for _, r := range list {
			if label, name, ok := strings.Cut(r, "#"); ok {
				other, found := t.desc.targets[label]
				switch {
				case !found:
					fail("%s: unknown target %s", where, label)
				case other == t:
					fail("%s: %q refers to its own target; use the local name", where, r)
				default:
					if _, ok := other.declared[name]; !ok {
						fail("%s: %s declares no artifact %q", where, label, name)
					}
				}
				continue
			}
			if _, ok := names[r]; !ok {
				fail("%s: unknown reference %q", where, r)
			}
		}
	}
	for _, g := range t.Aggregations {
		refs("aggregation "+g.Name, g.Inputs)
	}
	for i, a := range t.Actions {
		if a.Mnemonic == "" {
			fail("actions[%d]: mnemonic is required", i)
		}
		if len(a.Outputs) == 0 {
			fail("actions[%d] %s: no outputs", i, a.Mnemonic)
		}
		refs(fmt.Sprintf("actions[%d] inputs", i), a.Inputs)
		for _, o := range a.Outputs {
			if _, ok := t.declared[o]; !ok {
				fail("actions[%d] %s: output %q is not a declared artifact", i, a.Mnemonic, o)
			}
		}
	}
	return errs
}

// Configuration returns the configuration named name.
func (d *Description) Configuration(name string) (buildconfig.Configuration, bool) {
	c, ok := d.configs[name]
	return c, ok
}

// Target returns the target labeled label.
func (d *Description) Target(label string) (*Target, bool) {
	t, ok := d.targets[label]
	return t, ok
}

// Labels returns every target label in sorted order.
func (d *Description) Labels() []string {
	out := make([]string, 0, len(d.targets))
	for l := range d.targets {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Keys returns the build-info keys the description asks for.
func (d *Description) Keys() []buildinfo.Key {
	out := make([]buildinfo.Key, 0, len(d.BuildInfoKeys))
	for _, k := range d.BuildInfoKeys {
		out = append(out, buildinfo.Key(k))
	}
	return out
}

func rootName(s string) (string, bool) {
	switch s {
	case "", "bin":
		return "bin", true
	case "genfiles":
		return "genfiles", true
	default:
		return "", false
	}
}

func declaredKind(s string) (artifact.Kind, error) {
	if s == "" {
		return artifact.KindDerived, nil
	}
	k, ok := artifact.ParseKind(s)
	if !ok {
		return 0, fmt.Errorf("unknown kind %q", s)
	}
	switch k {
	case artifact.KindDerived, artifact.KindConstantMetadata, artifact.KindFileset:
		return k, nil
	default:
		return 0, fmt.Errorf("kind %s cannot be declared", k)
	}
}
