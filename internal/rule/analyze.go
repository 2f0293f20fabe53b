package rule

import (
	"errors"
	"fmt"
	"strings"

	"buildweaver/internal/analysis"
	"buildweaver/internal/artifact"
	"buildweaver/internal/buildconfig"
	"buildweaver/internal/buildinfo"
	"buildweaver/internal/event"
)

// ConfigurationOf returns the configuration t is analyzed under.
func (t *Target) ConfigurationOf() (buildconfig.Configuration, error) {
	cfg, ok := t.desc.configs[t.Configuration]
	if !ok {
		return buildconfig.Configuration{}, fmt.Errorf("%s: unknown configuration %q", t.Label, t.Configuration)
	}
	return cfg, nil
}

// Analyze declares the target's artifacts and registers its actions in s.
//
// Analysis does not stop at the first failure: every problem is reported to
// the session's event sink and all of them are returned joined.
func (t *Target) Analyze(s *analysis.Session) error {
	a := &analyzer{target: t, session: s, scope: make(map[string][]artifact.Artifact)}
	a.run()
	return errors.Join(a.errs...)
}

type analyzer struct {
	target  *Target
	session *analysis.Session
	scope   map[string][]artifact.Artifact
	errs    []error
}

// fail records err. Errors from session calls are already in the sink;
// rule-level errors are reported here.
func (a *analyzer) fail(err error, reported bool) {
	a.errs = append(a.errs, err)
	if !reported {
		a.session.EventSink().Errorf(event.CodeRuleError, nil, "%v", err)
	}
}

func (a *analyzer) run() {
	t, s := a.target, a.session
	cfg := s.Configuration()

	for _, f := range t.Sources {
		art, err := s.SourceArtifact(f.Path)
		if err != nil {
			a.fail(fmt.Errorf("source %q: %w", f.Name, err), true)
			continue
		}
		a.scope[f.Name] = []artifact.Artifact{art}
	}
	for _, f := range t.Tools {
		art, err := s.EmbeddedToolArtifact(f.Path)
		if err != nil {
			a.fail(fmt.Errorf("tool %q: %w", f.Name, err), true)
			continue
		}
		a.scope[f.Name] = []artifact.Artifact{art}
	}
	for _, spec := range t.Artifacts {
		art, err := a.declare(cfg, spec)
		if err != nil {
			a.fail(fmt.Errorf("artifact %q: %w", spec.Name, err), true)
			continue
		}
		a.scope[spec.Name] = []artifact.Artifact{art}
	}
	for _, b := range t.BuildInfo {
		arts, err := s.BuildInfo(buildinfo.Key(b.Key))
		if err != nil {
			a.fail(fmt.Errorf("build_info %q: %w", b.Name, err), true)
			continue
		}
		a.scope[b.Name] = arts
	}
	for _, g := range t.Aggregations {
		inputs, ok := a.resolve("aggregation "+g.Name, g.Inputs)
		if !ok {
			continue
		}
		mm, err := s.Aggregate(g.Purpose, inputs)
		if err != nil {
			a.fail(fmt.Errorf("aggregation %q: %w", g.Name, err), true)
			continue
		}
		a.scope[g.Name] = []artifact.Artifact{mm}
	}
	for i, spec := range t.Actions {
		where := fmt.Sprintf("action %d (%s)", i, spec.Mnemonic)
		inputs, okIn := a.resolve(where, spec.Inputs)
		outputs, okOut := a.resolve(where, spec.Outputs)
		if !okIn || !okOut {
			continue
		}
		if _, err := s.RegisterAction(spec.Mnemonic, inputs, outputs); err != nil {
			a.fail(fmt.Errorf("%s: %w", where, err), true)
		}
	}
}

func (a *analyzer) declare(cfg buildconfig.Configuration, spec ArtifactSpec) (artifact.Artifact, error) {
	root, err := rootOf(cfg, spec.Root)
	if err != nil {
		return artifact.Artifact{}, err
	}
	kind, err := declaredKind(spec.Kind)
	if err != nil {
		return artifact.Artifact{}, err
	}
	switch kind {
	case artifact.KindConstantMetadata:
		return a.session.ConstantMetadataArtifact(spec.Path, root)
	case artifact.KindFileset:
		return a.session.FilesetArtifact(spec.Path, root)
	default:
		return a.session.DerivedArtifact(spec.Path, root)
	}
}

// resolve maps references to artifacts. Unresolvable references are reported
// and make ok false.
func (a *analyzer) resolve(where string, refs []string) ([]artifact.Artifact, bool) {
	out := make([]artifact.Artifact, 0, len(refs))
	ok := true
	for _, r := range refs {
		arts, reported, err := a.lookup(r)
		if err != nil {
			a.fail(fmt.Errorf("%s: %w", where, err), reported)
			ok = false
			continue
		}
		out = append(out, arts...)
	}
	return out, ok
}

// lookup resolves one reference. reported is true when the error already
// reached the event sink.
func (a *analyzer) lookup(ref string) (arts []artifact.Artifact, reported bool, err error) {
	label, name, external := strings.Cut(ref, "#")
	if !external {
		arts, ok := a.scope[ref]
		if !ok {
			return nil, false, fmt.Errorf("reference %q is not available", ref)
		}
		return arts, false, nil
	}

	other, ok := a.target.desc.targets[label]
	if !ok {
		return nil, false, fmt.Errorf("unknown target %s", label)
	}
	spec, ok := other.declared[name]
	if !ok {
		return nil, false, fmt.Errorf("%s declares no artifact %q", label, name)
	}
	cfg, err := other.ConfigurationOf()
	if err != nil {
		return nil, false, err
	}
	root, err := rootOf(cfg, spec.Root)
	if err != nil {
		return nil, false, err
	}
	kind, err := declaredKind(spec.Kind)
	if err != nil {
		return nil, false, err
	}
	art, err := a.session.DependencyArtifact(spec.Path, root, kind)
	if err != nil {
		return nil, true, err
	}
	return []artifact.Artifact{art}, false, nil
}

func rootOf(cfg buildconfig.Configuration, name string) (artifact.Root, error) {
	n, ok := rootName(name)
	if !ok {
		return artifact.Root{}, fmt.Errorf("unknown root %q", name)
	}
	root, ok := cfg.Root(n)
	if !ok {
		return artifact.Root{}, fmt.Errorf("configuration %s has no %s root", cfg.Name, n)
	}
	return root, nil
}
