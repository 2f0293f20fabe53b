package action

import (
	"sync"
	"sync/atomic"

	"buildweaver/internal/artifact"
)

// claim is one Generating-Action Map entry.
type claim struct {
	action  *Action
	session string
}

// Observer receives registration events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ActionRegistered(mnemonic string)
	ActionConflict(mnemonic string)
}

type nopObserver struct{}

func (nopObserver) ActionRegistered(string) {}
func (nopObserver) ActionConflict(string)   {}

// GeneratingMap is the build-global output -> generating action map.
//
// It is safe for concurrent use. Entries are only inserted through a Registry.
type GeneratingMap struct {
	mu    sync.Mutex // serializes claimAll
	m     sync.Map   // artifact.Artifact -> *claim
	count atomic.Int64

	observer Observer
}

// NewGeneratingMap returns an empty map. A nil observer is ignored.
func NewGeneratingMap(o Observer) *GeneratingMap {
	if o == nil {
		o = nopObserver{}
	}
	return &GeneratingMap{observer: o}
}

// claimAll maps every output of c.action to c, or none of them. It returns
// the first output already generated by a different action together with that
// action's claim. Outputs already mapped to c.action are left alone; inserted
// counts the new entries.
//
// Writers are serialized so no other registrant observes a partial claim.
// Readers go through the sync.Map without locking.
func (g *GeneratingMap) claimAll(c *claim) (conflict artifact.Artifact, winner *claim, inserted int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, out := range c.action.Outputs {
		existing, ok := g.load(out)
		if ok && existing.action != c.action {
			return out, existing, 0
		}
	}
	for _, out := range c.action.Outputs {
		if _, loaded := g.m.LoadOrStore(out, c); !loaded {
			inserted++
		}
	}
	g.count.Add(int64(inserted))
	return artifact.Artifact{}, nil, inserted
}

func (g *GeneratingMap) load(out artifact.Artifact) (*claim, bool) {
	v, ok := g.m.Load(out)
	if !ok {
		return nil, false
	}
	return v.(*claim), true
}

// Producer returns the action that generates a in any session.
//
// This is the published, build-wide view; analysis code running inside a
// session must use Registry.GeneratingActionOf instead.
func (g *GeneratingMap) Producer(a artifact.Artifact) (*Action, bool) {
	c, ok := g.load(a)
	if !ok {
		return nil, false
	}
	return c.action, true
}

// HasProducer reports whether any action generates a.
func (g *GeneratingMap) HasProducer(a artifact.Artifact) bool {
	_, ok := g.m.Load(a)
	return ok
}

// Len returns the number of outputs with a generating action.
func (g *GeneratingMap) Len() int { return int(g.count.Load()) }
