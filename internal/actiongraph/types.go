package actiongraph

import "buildweaver/internal/action"

// Hash is the deterministic identity of a Graph.
type Hash string

func (h Hash) String() string { return string(h) }

// Edge is a dependency: To consumes an output of From. Both are action IDs.
type Edge struct {
	From string `json:"from" cbor:"from"`
	To   string `json:"to" cbor:"to"`
}

// Node is an immutable graph node.
type Node struct {
	ID     string
	Action *action.Action

	canonicalIndex int
}

// CanonicalIndex returns the node's position in the canonical ordering.
func (n *Node) CanonicalIndex() int { return n.canonicalIndex }
