package actiongraph

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"buildweaver/internal/action"
	"buildweaver/internal/analysis"
	"buildweaver/internal/artifact"
)

type edgeIndex struct {
	from int
	to   int
}

// Graph is a validated action graph. It is safe for concurrent read access.
type Graph struct {
	nodesByID map[string]*Node
	nodes     []*Node // canonical order

	producers map[string]int // output exec path -> canonical index

	edges    []edgeIndex // sorted
	outgoing [][]int     // by canonical index, sorted ascending
	incoming [][]int
	indeg    []int

	hash Hash
}

// New builds the graph of every action in snapshots.
func New(snapshots ...analysis.Snapshot) (*Graph, error) {
	var actions []*action.Action
	for _, s := range snapshots {
		actions = append(actions, s.Actions...)
		actions = append(actions, s.Shared...)
	}
	return FromActions(actions)
}

// FromActions builds and validates the graph of actions.
//
// Validation rejects:
//   - nil actions and actions without outputs
//   - two actions with the same ID
//   - an output generated by two actions
//   - any cycle, including an action consuming its own output
func FromActions(actions []*action.Action) (*Graph, error) {
	nodesByID := make(map[string]*Node, len(actions))
	nodes := make([]*Node, 0, len(actions))
	for _, act := range actions {
		if act == nil {
			return nil, invalidf("nil action")
		}
		if len(act.Outputs) == 0 {
			return nil, invalidf("action %s has no outputs", act.ID())
		}
		id := act.ID()
		if existing, ok := nodesByID[id]; ok {
			if existing.Action == act {
				continue
			}
			return nil, conflictf("duplicate action id %s", id)
		}
		n := &Node{ID: id, Action: act}
		nodesByID[id] = n
		nodes = append(nodes, n)
	}

	// Canonical order: content key first, ID as tie-breaker.
	sort.Slice(nodes, func(i, j int) bool {
		ki, kj := nodes[i].Action.Key(), nodes[j].Action.Key()
		if ki != kj {
			return ki < kj
		}
		return nodes[i].ID < nodes[j].ID
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	producers := make(map[string]int)
	for _, n := range nodes {
		for _, out := range n.Action.Outputs {
			p := out.ExecPath()
			if prev, ok := producers[p]; ok {
				return nil, conflictf("%s is generated by %s and %s", p, nodes[prev].ID, n.ID)
			}
			producers[p] = n.canonicalIndex
		}
	}

	seen := make(map[edgeIndex]struct{})
	var edges []edgeIndex
	for _, n := range nodes {
		for _, in := range n.Action.Inputs {
			from, ok := producers[in.ExecPath()]
			if !ok {
				continue
			}
			e := edgeIndex{from: from, to: n.canonicalIndex}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}

	g := &Graph{
		nodesByID: nodesByID,
		nodes:     nodes,
		producers: producers,
		edges:     edges,
		outgoing:  outgoing,
		incoming:  incoming,
		indeg:     indeg,
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	g.hash = g.computeHash()
	return g, nil
}

// Hash returns the stable identity of the graph.
func (g *Graph) Hash() Hash { return g.hash }

// Len returns the number of actions.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns a node by action ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodesByID[id]
	return n, ok
}

// Nodes returns the nodes in canonical order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges as action ID pairs in canonical order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].ID, To: g.nodes[e.to].ID})
	}
	return out
}

// Producer returns the action generating the artifact at execPath.
func (g *Graph) Producer(execPath string) (*action.Action, bool) {
	idx, ok := g.producers[execPath]
	if !ok {
		return nil, false
	}
	return g.nodes[idx].Action, true
}

// Dependencies returns the IDs of the actions whose outputs id consumes.
func (g *Graph) Dependencies(id string) []string {
	n, ok := g.nodesByID[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[n.canonicalIndex]))
	for _, p := range g.incoming[n.canonicalIndex] {
		out = append(out, g.nodes[p].ID)
	}
	return out
}

// Leaves returns the inputs no action in the graph generates, sorted by exec
// path. Source files and artifacts produced outside the graph end up here.
func (g *Graph) Leaves() []artifact.Artifact {
	seen := make(map[artifact.Artifact]struct{})
	var out []artifact.Artifact
	for _, n := range g.nodes {
		for _, in := range n.Action.Inputs {
			if _, ok := g.producers[in.ExecPath()]; ok {
				continue
			}
			if _, dup := seen[in]; dup {
				continue
			}
			seen[in] = struct{}{}
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return artifact.Less(out[i], out[j]) })
	return out
}

// TopologicalOrder returns a deterministic topological ordering of action IDs.
func (g *Graph) TopologicalOrder() []string {
	order := g.topoOrderIndices()
	ids := make([]string, 0, len(order))
	for _, idx := range order {
		ids = append(ids, g.nodes[idx].ID)
	}
	return ids
}

func (g *Graph) computeHash() Hash {
	h := sha256.New()

	writeField := func(data []byte) {
		length := uint64(len(data))
		h.Write([]byte{
			byte(length >> 56),
			byte(length >> 48),
			byte(length >> 40),
			byte(length >> 32),
			byte(length >> 24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		})
		h.Write(data)
	}
	writeInt := func(n int) {
		writeField([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	}

	writeInt(len(g.nodes))
	for _, n := range g.nodes {
		writeField([]byte(n.Action.Key()))
		writeField([]byte(n.Action.Owner))
	}

	writeInt(len(g.edges))
	for _, e := range g.edges {
		writeInt(e.from)
		writeInt(e.to)
	}

	return Hash(hex.EncodeToString(h.Sum(nil)))
}
