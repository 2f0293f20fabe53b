package action

import (
	"sync"

	"go.uber.org/zap"

	"buildweaver/internal/artifact"
)

// Registry is the per-session action registry.
//
// A Registry is owned by one analysis session and is not meant to be shared;
// its mutex only guarantees plain append semantics.
type Registry struct {
	session    string
	generating *GeneratingMap
	logger     *zap.Logger

	mu      sync.Mutex
	actions []*Action
	shared  []*Action
	closed  bool
}

// NewRegistry returns the registry for the session identified by session.
func NewRegistry(session string, generating *GeneratingMap, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		session:    session,
		generating: generating,
		logger:     logger.With(zap.String("component", "action_registry"), zap.String("session", session)),
	}
}

// Session returns the identifier of the owning session.
func (r *Registry) Session() string { return r.session }

// Register records act as the generating action of each of its outputs.
//
// Registration is all-or-nothing: if any output is already generated by a
// different action, no output is claimed and a *ConflictError naming both
// actions is returned. Registering the same action
// twice is a no-op.
func (r *Registry) Register(act *Action) error {
	if err := validate(act); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return &ActionError{Kind: ErrRegistryClosed, Msg: act.String()}
	}

	c := &claim{action: act, session: r.session}
	out, winner, inserted := r.generating.claimAll(c)
	if winner != nil {
		r.generating.observer.ActionConflict(act.Mnemonic)
		r.logger.Warn("conflicting generating action",
			zap.String("artifact", out.ExecPath()),
			zap.String("existing", winner.action.ID()),
			zap.String("attempted", act.ID()))
		return &ConflictError{Artifact: out, Existing: winner.action, Attempted: act}
	}
	if inserted == 0 {
		// Every output was already generated by act.
		return nil
	}
	if !r.containsLocked(act) {
		r.actions = append(r.actions, act)
	}
	r.generating.observer.ActionRegistered(act.Mnemonic)
	r.logger.Debug("registered action",
		zap.String("action", act.ID()),
		zap.Int("outputs", len(act.Outputs)))
	return nil
}

func (r *Registry) containsLocked(act *Action) bool {
	for _, a := range r.actions {
		if a == act {
			return true
		}
	}
	return false
}

// RegisteredActions returns the actions registered through r in registration
// order. The returned slice is a copy.
func (r *Registry) RegisteredActions() []*Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Share records act, registered through another session's registry, as an
// action this session depends on. act must already generate every one of its
// outputs. Shared actions do not change GeneratingActionOf; they let a
// session's result carry an action whose owning session may be discarded.
func (r *Registry) Share(act *Action) error {
	if act == nil {
		return invalidf("nil action")
	}
	for _, out := range act.Outputs {
		if prod, ok := r.generating.Producer(out); !ok || prod != act {
			return invalidf("%s is not the generating action of %s", act.Mnemonic, out.ExecPath())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return &ActionError{Kind: ErrRegistryClosed, Msg: act.String()}
	}
	if r.containsLocked(act) {
		return nil
	}
	for _, a := range r.shared {
		if a == act {
			return nil
		}
	}
	r.shared = append(r.shared, act)
	return nil
}

// SharedActions returns the actions recorded through Share, in order. The
// returned slice is a copy.
func (r *Registry) SharedActions() []*Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Action, len(r.shared))
	copy(out, r.shared)
	return out
}

// GeneratingActionOf returns the action registered through r that generates a.
//
// It returns false for source artifacts, for artifacts generated by another
// session's action, and for artifacts with no generating action at all.
func (r *Registry) GeneratingActionOf(a artifact.Artifact) (*Action, bool) {
	if a.IsZero() || a.IsSource() {
		return nil, false
	}
	c, ok := r.generating.load(a)
	if !ok || c.session != r.session {
		return nil, false
	}
	return c.action, true
}

// Close makes the registry read-only. Further Register calls fail with
// ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func validate(act *Action) error {
	if act == nil {
		return invalidf("nil action")
	}
	if act.Mnemonic == "" {
		return invalidf("mnemonic is required")
	}
	if len(act.Outputs) == 0 {
		return invalidf("%s declares no outputs", act.Mnemonic)
	}
	for _, out := range act.Outputs {
		if out.IsZero() {
			return invalidf("%s declares an invalid output", act.Mnemonic)
		}
		if !out.Kind().IsDerived() {
			return invalidf("%s declares %s output %s", act.Mnemonic, out.Kind(), out.ExecPath())
		}
	}
	for _, in := range act.Inputs {
		if in.IsZero() {
			return invalidf("%s declares an invalid input", act.Mnemonic)
		}
	}
	return nil
}
