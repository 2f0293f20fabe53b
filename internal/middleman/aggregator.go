// Package middleman collapses a set of input artifacts into one synthetic
// dependency edge.
//
// A middleman is an artifact of kind Middleman whose generating action takes
// the whole input set as inputs and produces only the middleman. The
// Aggregator deduplicates by input set, build-wide: the same set in any order
// yields the same middleman and at most one action.
package middleman

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
)

// Mnemonic is the mnemonic of every middleman action.
const Mnemonic = "Middleman"

// DefaultPurpose is used when the caller does not name one.
const DefaultPurpose = "aggregate"

var (
	ErrEmptyInputs    = errors.New("middleman requires at least one input")
	ErrInvalidPurpose = errors.New("invalid middleman purpose")
)

// domainKey separates middleman digests from any other BLAKE3 use.
var domainKey = [32]byte{
	'b', 'u', 'i', 'l', 'd', 'w', 'e', 'a', 'v', 'e', 'r', '.',
	'm', 'i', 'd', 'd', 'l', 'e', 'm', 'a', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Observer receives cache outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	MiddlemanHit()
	MiddlemanMiss()
}

type nopObserver struct{}

func (nopObserver) MiddlemanHit()  {}
func (nopObserver) MiddlemanMiss() {}

// entry is one cached middleman and the action that generates it.
type entry struct {
	artifact artifact.Artifact
	action   *action.Action
}

// Aggregator is build-global and safe for concurrent use.
type Aggregator struct {
	table *artifact.Table
	cache *gocache.Cache
	group singleflight.Group

	observer Observer
	logger   *zap.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// NewAggregator returns an aggregator that interns middlemen in table.
func NewAggregator(table *artifact.Table, opts ...Option) *Aggregator {
	a := &Aggregator{
		table:    table,
		cache:    gocache.New(gocache.NoExpiration, 0),
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "middleman"))
	return a
}

// Aggregate returns the middleman standing for inputs.
//
// On a cache miss the middleman action is created with owner as its owner and
// registered through reg. On a hit the cached action is shared into reg. A
// single input needs no middleman and is returned unchanged.
func (a *Aggregator) Aggregate(reg *action.Registry, owner, purpose string, inputs []artifact.Artifact) (artifact.Artifact, error) {
	if purpose == "" {
		purpose = DefaultPurpose
	}
	if strings.ContainsAny(purpose, "/\\ ") {
		return artifact.Artifact{}, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}
	set := canonicalSet(inputs)
	if len(set) == 0 {
		return artifact.Artifact{}, ErrEmptyInputs
	}
	for _, in := range set {
		if in.IsZero() {
			return artifact.Artifact{}, fmt.Errorf("middleman %s: invalid input artifact", purpose)
		}
	}
	if len(set) == 1 {
		return set[0], nil
	}

	key := digest(purpose, set)
	if v, ok := a.cache.Get(key); ok {
		a.observer.MiddlemanHit()
		return a.share(reg, v.(*entry))
	}

	created := false
	v, err, _ := a.group.Do(key, func() (any, error) {
		if v, ok := a.cache.Get(key); ok {
			return v, nil
		}
		mm, err := a.table.GetOrCreate(artifact.MiddlemanRoot, purpose+"-"+key[:32], artifact.KindMiddleman)
		if err != nil {
			return nil, err
		}
		act := action.New(owner, Mnemonic, set, []artifact.Artifact{mm})
		if err := reg.Register(act); err != nil {
			return nil, fmt.Errorf("registering middleman %s: %w", mm.ExecPath(), err)
		}
		e := &entry{artifact: mm, action: act}
		a.cache.Set(key, e, gocache.NoExpiration)
		created = true
		a.logger.Debug("created middleman",
			zap.String("artifact", mm.ExecPath()),
			zap.String("owner", owner),
			zap.Int("inputs", len(set)))
		return e, nil
	})
	if err != nil {
		return artifact.Artifact{}, err
	}
	if created {
		a.observer.MiddlemanMiss()
		return v.(*entry).artifact, nil
	}
	a.observer.MiddlemanHit()
	return a.share(reg, v.(*entry))
}

// share hands a cached middleman to a session that did not create it. The
// action is recorded in reg so the session's result still carries it when
// the creating session is discarded.
func (a *Aggregator) share(reg *action.Registry, e *entry) (artifact.Artifact, error) {
	if err := reg.Share(e.action); err != nil {
		return artifact.Artifact{}, fmt.Errorf("sharing middleman %s: %w", e.artifact.ExecPath(), err)
	}
	return e.artifact, nil
}

// Len returns the number of distinct middlemen created.
func (a *Aggregator) Len() int { return a.cache.ItemCount() }

func canonicalSet(inputs []artifact.Artifact) []artifact.Artifact {
	// Reuse the action package's normalization so the middleman action and the
	// cache key see the same set.
	return action.New("", "", inputs, nil).Inputs
}

// digest is the hex BLAKE3 keyed hash of purpose and the canonical input set.
func digest(purpose string, set []artifact.Artifact) string {
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("middleman: blake3 keyed hasher: " + err.Error())
	}
	writeField(h, purpose)
	for _, in := range set {
		writeField(h, in.Kind().String())
		writeField(h, in.ExecPath())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h *blake3.Hasher, s string) {
	n := uint64(len(s))
	_, _ = h.Write([]byte{byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32), byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	_, _ = h.Write([]byte(s))
}
