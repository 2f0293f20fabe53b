// Package buildinfo maps symbolic workspace-status keys to the artifacts that
// carry them in a given configuration.
//
// The content of those artifacts is produced by a configuration-level step
// outside analysis. Resolution is a pure function of (configuration, key), so
// every session asking for the same pair converges on the same handles.
package buildinfo

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"buildweaver/internal/artifact"
	"buildweaver/internal/buildconfig"
)

// Key names a workspace-status category.
type Key string

const (
	BuildTimestamp Key = "BUILD_TIMESTAMP"
	VCSRevision    Key = "VCS_REVISION"
	StableKey      Key = "STABLE_KEY"
)

// DefaultKeys is the key set of a bridge constructed without explicit keys.
var DefaultKeys = []Key{BuildTimestamp, StableKey, VCSRevision}

const (
	dir            = "build-info"
	stableStatus   = "stable-status.txt"
	volatileStatus = "volatile-status.txt"
)

var (
	ErrUnknownKey     = errors.New("unknown build-info key")
	ErrInvalidKey     = errors.New("invalid build-info key")
	ErrNoGenfilesRoot = errors.New("configuration has no genfiles root")
	keyPattern        = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// Pair is the artifact pair behind one key: Stable is an ordinary derived
// artifact whose changes invalidate dependents, Volatile is constant metadata
// and never does.
type Pair struct {
	Stable   artifact.Artifact
	Volatile artifact.Artifact
}

// Artifacts returns the pair as a slice, stable first.
func (p Pair) Artifacts() []artifact.Artifact {
	return []artifact.Artifact{p.Stable, p.Volatile}
}

// Bridge resolves keys through the build-global identity table. It holds no
// mutable state of its own and is safe for concurrent use.
type Bridge struct {
	table  *artifact.Table
	keys   map[Key]struct{}
	logger *zap.Logger
}

// ParseKey validates s as a key name.
func ParseKey(s string) (Key, error) {
	if !keyPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key(s), nil
}

// NewBridge returns a bridge that knows keys. An empty key list selects
// DefaultKeys.
func NewBridge(table *artifact.Table, keys []Key, logger *zap.Logger) (*Bridge, error) {
	if table == nil {
		return nil, errors.New("buildinfo: nil artifact table")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	known := make(map[Key]struct{}, len(keys))
	var errs []error
	for _, k := range keys {
		if _, err := ParseKey(string(k)); err != nil {
			errs = append(errs, err)
			continue
		}
		known[k] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Bridge{
		table:  table,
		keys:   known,
		logger: logger.With(zap.String("component", "buildinfo")),
	}, nil
}

// Keys returns the known keys in sorted order.
func (b *Bridge) Keys() []Key {
	out := make([]Key, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the build-info artifacts for key in cfg.
func (b *Bridge) Resolve(cfg buildconfig.Configuration, key Key) (Pair, error) {
	if _, ok := b.keys[key]; !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if cfg.GenfilesRoot.IsZero() {
		return Pair{}, fmt.Errorf("%w: %q", ErrNoGenfilesRoot, cfg.Name)
	}
	stable, err := b.table.GetOrCreate(cfg.GenfilesRoot, path.Join(dir, string(key), stableStatus), artifact.KindDerived)
	if err != nil {
		return Pair{}, fmt.Errorf("build-info %s stable artifact: %w", key, err)
	}
	volatile, err := b.table.GetOrCreate(cfg.GenfilesRoot, path.Join(dir, string(key), volatileStatus), artifact.KindConstantMetadata)
	if err != nil {
		return Pair{}, fmt.Errorf("build-info %s volatile artifact: %w", key, err)
	}
	return Pair{Stable: stable, Volatile: volatile}, nil
}

// StableStatus returns the build-wide stable workspace-status artifact of cfg.
func (b *Bridge) StableStatus(cfg buildconfig.Configuration) (artifact.Artifact, error) {
	if cfg.GenfilesRoot.IsZero() {
		return artifact.Artifact{}, fmt.Errorf("%w: %q", ErrNoGenfilesRoot, cfg.Name)
	}
	return b.table.GetOrCreate(cfg.GenfilesRoot, stableStatus, artifact.KindDerived)
}

// VolatileStatus returns the build-wide volatile workspace-status artifact of
// cfg. It is constant metadata.
func (b *Bridge) VolatileStatus(cfg buildconfig.Configuration) (artifact.Artifact, error) {
	if cfg.GenfilesRoot.IsZero() {
		return artifact.Artifact{}, fmt.Errorf("%w: %q", ErrNoGenfilesRoot, cfg.Name)
	}
	return b.table.GetOrCreate(cfg.GenfilesRoot, volatileStatus, artifact.KindConstantMetadata)
}
