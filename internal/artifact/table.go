package artifact

import (
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// identity is the interning key. Kind is deliberately not part of it: a
// (root, path) pair maps to exactly one record whatever kind is requested.
type identity struct {
	root Root
	path string
}

// Observer receives interning events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ArtifactInterned(kind Kind)
	ArtifactKindConflict(existing, requested Kind)
}

type nopObserver struct{}

func (nopObserver) ArtifactInterned(Kind)           {}
func (nopObserver) ArtifactKindConflict(Kind, Kind) {}

// Table is the build-global artifact identity table. It is safe for concurrent
// use by any number of analysis sessions.
type Table struct {
	index sync.Map // identity -> *record
	seq   atomic.Uint64
	count atomic.Int64

	logger   *zap.Logger
	observer Observer
}

// TableOption customizes a Table during construction.
type TableOption func(*Table)

// WithLogger sets the logger used for kind conflicts.
func WithLogger(logger *zap.Logger) TableOption {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver installs an interning observer (typically metrics).
func WithObserver(o Observer) TableOption {
	return func(t *Table) {
		if o != nil {
			t.observer = o
		}
	}
}

// NewTable creates an empty identity table for one build.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("component", "artifact_table"))
	return t
}

// GetOrCreate returns the canonical handle for (root, rootRelativePath),
// interning it with kind on first request.
//
// Accepted kinds are Derived, ConstantMetadata, Fileset and Middleman. Source
// artifacts are referenced through Source and embedded tools through
// EmbeddedTool. A request whose kind differs from the interned kind fails with
// a *KindError.
func (t *Table) GetOrCreate(root Root, rootRelativePath string, kind Kind) (Artifact, error) {
	switch kind {
	case KindDerived, KindConstantMetadata, KindFileset, KindMiddleman:
	case KindSource:
		return Artifact{}, requestErrorf(ErrSourceArtifact, "%s%s", root, rootRelativePath)
	default:
		return Artifact{}, requestErrorf(ErrInconsistentArtifactKind, "kind %s cannot be created through GetOrCreate", kind)
	}
	if root.IsZero() || root.Source {
		return Artifact{}, requestErrorf(ErrInvalidRoot, "derived artifact %q requires an output root, got %s", rootRelativePath, root)
	}
	return t.intern(root, rootRelativePath, kind)
}

// Source returns the handle referencing a file in the source tree. Source
// references share the identity index, so repeated requests return the same
// handle, but they are not counted by Len, listed by Artifacts or reported to
// the observer.
func (t *Table) Source(rootRelativePath string) (Artifact, error) {
	return t.intern(SourceRoot, rootRelativePath, KindSource)
}

// EmbeddedTool returns the handle for a tool bundled with the build tool. The
// path is build-tool-internal, not workspace relative.
func (t *Table) EmbeddedTool(embeddedPath string) (Artifact, error) {
	return t.intern(EmbeddedToolsRoot, embeddedPath, KindEmbeddedTool)
}

func (t *Table) intern(root Root, rawPath string, kind Kind) (Artifact, error) {
	p, err := cleanRelative(rawPath)
	if err != nil {
		return Artifact{}, err
	}
	key := identity{root: root, path: p}

	if v, ok := t.index.Load(key); ok {
		return t.adopt(v.(*record), kind)
	}

	candidate := &record{id: t.seq.Add(1), root: root, path: p, kind: kind}
	v, loaded := t.index.LoadOrStore(key, candidate)
	if loaded {
		return t.adopt(v.(*record), kind)
	}
	if kind != KindSource {
		t.count.Add(1)
		t.observer.ArtifactInterned(kind)
	}
	return Artifact{rec: candidate}, nil
}

func (t *Table) adopt(rec *record, requested Kind) (Artifact, error) {
	if rec.kind != requested {
		t.observer.ArtifactKindConflict(rec.kind, requested)
		t.logger.Warn("artifact requested with inconsistent kind",
			zap.String("artifact", rec.root.String()+rec.path),
			zap.Stringer("existing", rec.kind),
			zap.Stringer("requested", requested))
		return Artifact{}, &KindError{Root: rec.root, Path: rec.path, Existing: rec.kind, Requested: requested}
	}
	return Artifact{rec: rec}, nil
}

// Lookup returns the interned handle for (root, rootRelativePath) without
// creating it.
func (t *Table) Lookup(root Root, rootRelativePath string) (Artifact, bool) {
	p, err := cleanRelative(rootRelativePath)
	if err != nil {
		return Artifact{}, false
	}
	v, ok := t.index.Load(identity{root: root, path: p})
	if !ok {
		return Artifact{}, false
	}
	return Artifact{rec: v.(*record)}, true
}

// Len returns the number of interned identities, source references excluded.
func (t *Table) Len() int { return int(t.count.Load()) }

// Artifacts returns every interned handle except source references, sorted by
// exec path.
func (t *Table) Artifacts() []Artifact {
	out := make([]Artifact, 0, t.Len())
	t.index.Range(func(_, v any) bool {
		if rec := v.(*record); rec.kind != KindSource {
			out = append(out, Artifact{rec: rec})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

func cleanRelative(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", requestErrorf(ErrInvalidPath, "path is required")
	}
	if strings.HasPrefix(p, "/") {
		return "", requestErrorf(ErrInvalidPath, "path must be root-relative: %q", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", requestErrorf(ErrInvalidPath, "path escapes its root: %q", p)
	}
	return clean, nil
}
