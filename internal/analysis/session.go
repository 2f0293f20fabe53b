package analysis

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
	"buildweaver/internal/buildconfig"
	"buildweaver/internal/buildinfo"
	"buildweaver/internal/event"
	"buildweaver/internal/metrics"
)

// EvalEnv is the incremental-evaluation environment a session may run under.
// It is passed through without interpretation.
type EvalEnv any

var now = time.Now

// Session is the analysis scope of one configured target.
type Session struct {
	id       string
	target   string
	cfg      buildconfig.Configuration
	build    *Build
	registry *action.Registry
	sink     *event.Sink
	evalEnv  EvalEnv
	logger   *zap.Logger
	started  time.Time

	mu       sync.Mutex
	state    State
	tracked  map[artifact.Artifact]struct{}
	declared []artifact.Artifact
	snapshot *Snapshot
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the label of the target under analysis.
func (s *Session) Target() string { return s.target }

// Configuration returns the configuration the target is analyzed under.
func (s *Session) Configuration() buildconfig.Configuration { return s.cfg }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EventSink returns the sink diagnostics of this session go to.
func (s *Session) EventSink() *event.Sink { return s.sink }

// HasErrors reports whether an error-severity event was reported.
func (s *Session) HasErrors() bool { return s.sink.HasErrors() }

// EvalEnv returns the incremental-evaluation environment, if any.
func (s *Session) EvalEnv() (EvalEnv, bool) {
	return s.evalEnv, s.evalEnv != nil
}

// DerivedArtifact returns the derived artifact at rootRelativePath under root
// and records it as declared by this session.
func (s *Session) DerivedArtifact(rootRelativePath string, root artifact.Root) (artifact.Artifact, error) {
	return s.declare(rootRelativePath, root, artifact.KindDerived)
}

// ConstantMetadataArtifact is like DerivedArtifact but the artifact is exempt
// from staleness checks.
func (s *Session) ConstantMetadataArtifact(rootRelativePath string, root artifact.Root) (artifact.Artifact, error) {
	return s.declare(rootRelativePath, root, artifact.KindConstantMetadata)
}

// FilesetArtifact returns a fileset artifact. Its root-relative path must
// denote a directory.
func (s *Session) FilesetArtifact(rootRelativePath string, root artifact.Root) (artifact.Artifact, error) {
	return s.declare(rootRelativePath, root, artifact.KindFileset)
}

func (s *Session) declare(rootRelativePath string, root artifact.Root, kind artifact.Kind) (artifact.Artifact, error) {
	if err := s.requireActive(); err != nil {
		return artifact.Artifact{}, err
	}
	a, err := s.build.table.GetOrCreate(root, rootRelativePath, kind)
	if err != nil {
		s.reportArtifactError(rootRelativePath, root, err)
		return artifact.Artifact{}, err
	}

	s.mu.Lock()
	if _, ok := s.tracked[a]; !ok {
		s.tracked[a] = struct{}{}
		s.declared = append(s.declared, a)
	}
	s.mu.Unlock()
	return a, nil
}

func (s *Session) reportArtifactError(rootRelativePath string, root artifact.Root, err error) {
	var kindErr *artifact.KindError
	if errors.As(err, &kindErr) {
		s.sink.Errorf(event.CodeInconsistentArtifactKind, []string{kindErr.Root.ExecPath + "/" + kindErr.Path}, "%v", err)
		return
	}
	s.sink.Errorf(event.CodeInvalidRequest, []string{root.ExecPath + "/" + rootRelativePath}, "%v", err)
}

// DependencyArtifact returns the handle of an artifact another target
// declares. The artifact is not counted among this session's declared
// artifacts, so it never becomes one of this session's orphans.
func (s *Session) DependencyArtifact(rootRelativePath string, root artifact.Root, kind artifact.Kind) (artifact.Artifact, error) {
	a, err := s.build.table.GetOrCreate(root, rootRelativePath, kind)
	if err != nil {
		s.reportArtifactError(rootRelativePath, root, err)
	}
	return a, err
}

// EmbeddedToolArtifact returns the artifact of a tool bundled with the build
// tool.
func (s *Session) EmbeddedToolArtifact(embeddedPath string) (artifact.Artifact, error) {
	a, err := s.build.table.EmbeddedTool(embeddedPath)
	if err != nil {
		s.reportArtifactError(embeddedPath, artifact.EmbeddedToolsRoot, err)
	}
	return a, err
}

// SourceArtifact returns the handle of a file in the source tree.
func (s *Session) SourceArtifact(rootRelativePath string) (artifact.Artifact, error) {
	a, err := s.build.table.Source(rootRelativePath)
	if err != nil {
		s.reportArtifactError(rootRelativePath, artifact.SourceRoot, err)
	}
	return a, err
}

// Register records act in this session's registry. Conflicts and invalid
// actions are also reported to the event sink.
func (s *Session) Register(act *action.Action) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	err := s.registry.Register(act)
	if err == nil {
		return nil
	}
	var conflict *action.ConflictError
	switch {
	case errors.As(err, &conflict):
		s.sink.Errorf(event.CodeConflictingGeneratingAction, []string{conflict.Artifact.ExecPath()}, "%v", err)
	default:
		s.sink.Errorf(event.CodeInvalidRequest, nil, "%v", err)
	}
	return err
}

// RegisterAction creates an action owned by this session's target and
// registers it.
func (s *Session) RegisterAction(mnemonic string, inputs, outputs []artifact.Artifact) (*action.Action, error) {
	act := action.New(s.target, mnemonic, inputs, outputs)
	if err := s.Register(act); err != nil {
		return nil, err
	}
	return act, nil
}

// RegisteredActions returns the actions registered by this session in
// registration order.
func (s *Session) RegisteredActions() []*action.Action { return s.registry.RegisteredActions() }

// GeneratingActionOf returns the action registered by this session that
// generates a. Artifacts generated by other sessions are reported absent.
func (s *Session) GeneratingActionOf(a artifact.Artifact) (*action.Action, bool) {
	return s.registry.GeneratingActionOf(a)
}

// Aggregate returns a middleman standing for inputs, registering its action
// in this session when no session has created it yet.
func (s *Session) Aggregate(purpose string, inputs []artifact.Artifact) (artifact.Artifact, error) {
	if err := s.requireActive(); err != nil {
		return artifact.Artifact{}, err
	}
	mm, err := s.build.middlemen.Aggregate(s.registry, s.target, purpose, inputs)
	if err != nil {
		s.sink.Errorf(event.CodeInvalidRequest, nil, "middleman %q: %v", purpose, err)
		return artifact.Artifact{}, err
	}
	return mm, nil
}

// BuildInfo returns the build-info artifacts for key in the session's
// configuration, stable first.
func (s *Session) BuildInfo(key buildinfo.Key) ([]artifact.Artifact, error) {
	pair, err := s.build.buildInfo.Resolve(s.cfg, key)
	if err != nil {
		s.sink.Errorf(event.CodeInvalidRequest, nil, "%v", err)
		return nil, err
	}
	return pair.Artifacts(), nil
}

// StableWorkspaceStatusArtifact returns the build-wide stable status artifact.
func (s *Session) StableWorkspaceStatusArtifact() (artifact.Artifact, error) {
	return s.build.buildInfo.StableStatus(s.cfg)
}

// VolatileWorkspaceStatusArtifact returns the build-wide volatile status
// artifact.
func (s *Session) VolatileWorkspaceStatusArtifact() (artifact.Artifact, error) {
	return s.build.buildInfo.VolatileStatus(s.cfg)
}

// DeclaredArtifacts returns the artifacts declared through this session's
// derived, constant-metadata and fileset factories, in declaration order.
func (s *Session) DeclaredArtifacts() []artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]artifact.Artifact, len(s.declared))
	copy(out, s.declared)
	return out
}

// Orphans returns the declared artifacts that have no generating action in
// the build. The result is only complete once analysis of the target is done.
func (s *Session) Orphans() []artifact.Artifact {
	return Orphans(s.DeclaredArtifacts(), s.build.generating)
}

// Finish concludes analysis: the registry becomes read-only and the snapshot
// is computed.
func (s *Session) Finish() (Snapshot, error) {
	s.mu.Lock()
	if err := s.transitionLocked(StateActive, StateFinished); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.mu.Unlock()
	s.registry.Close()

	orphans := s.Orphans()
	snap := Snapshot{
		Session:       s.id,
		Target:        s.target,
		Configuration: s.cfg.Name,
		Actions:       s.registry.RegisteredActions(),
		Shared:        s.registry.SharedActions(),
		Declared:      s.DeclaredArtifacts(),
		Orphans:       orphans,
		Events:        s.sink.Events(),
		HasErrors:     s.sink.HasErrors(),
	}

	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if snap.HasErrors {
		outcome = metrics.OutcomeError
	}
	if m := s.build.metrics; m != nil {
		m.RecordOrphans(len(orphans))
		m.RecordSession(outcome, now().Sub(s.started))
	}
	s.logger.Debug("session finished",
		zap.Int("actions", len(snap.Actions)),
		zap.Int("orphans", len(orphans)),
		zap.Bool("has_errors", snap.HasErrors))
	return snap, nil
}

// Discard abandons the session. Nothing it registered is rolled back.
func (s *Session) Discard() error {
	s.mu.Lock()
	if err := s.transitionLocked(StateActive, StateDiscarded); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.registry.Close()
	if m := s.build.metrics; m != nil {
		m.RecordSession(metrics.OutcomeDiscarded, now().Sub(s.started))
	}
	s.logger.Debug("session discarded")
	return nil
}

// Snapshot returns the snapshot computed by Finish.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished || s.snapshot == nil {
		return Snapshot{}, fmt.Errorf("%w: %s is %s", ErrSessionNotFinished, s.target, s.state)
	}
	return *s.snapshot, nil
}

func (s *Session) requireActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return fmt.Errorf("%w: %s is %s", ErrSessionNotActive, s.target, s.state)
	}
	return nil
}

func sortArtifacts(arts []artifact.Artifact) {
	sort.Slice(arts, func(i, j int) bool { return artifact.Less(arts[i], arts[j]) })
}
