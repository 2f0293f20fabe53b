package actiongraph

import (
	"encoding/json"

	"buildweaver/internal/codec"
)

// DocumentVersion is bumped whenever Document changes shape.
const DocumentVersion = 1

// Document is the serialized form of a Graph.
type Document struct {
	Version int            `json:"version" cbor:"version"`
	Hash    string         `json:"hash" cbor:"hash"`
	Actions []ActionRecord `json:"actions" cbor:"actions"`
	Edges   []Edge         `json:"edges" cbor:"edges"`
	Order   []string       `json:"order" cbor:"order"`
}

// ActionRecord describes one action by artifact exec paths.
type ActionRecord struct {
	ID       string   `json:"id" cbor:"id"`
	Owner    string   `json:"owner" cbor:"owner"`
	Mnemonic string   `json:"mnemonic" cbor:"mnemonic"`
	Key      string   `json:"key" cbor:"key"`
	Inputs   []string `json:"inputs" cbor:"inputs"`
	Outputs  []string `json:"outputs" cbor:"outputs"`
}

// Document returns the graph in canonical order.
func (g *Graph) Document() Document {
	doc := Document{
		Version: DocumentVersion,
		Hash:    g.hash.String(),
		Actions: make([]ActionRecord, 0, len(g.nodes)),
		Edges:   g.Edges(),
		Order:   g.TopologicalOrder(),
	}
	for _, n := range g.nodes {
		rec := ActionRecord{
			ID:       n.ID,
			Owner:    n.Action.Owner,
			Mnemonic: n.Action.Mnemonic,
			Key:      n.Action.Key().String(),
			Inputs:   make([]string, 0, len(n.Action.Inputs)),
			Outputs:  make([]string, 0, len(n.Action.Outputs)),
		}
		for _, in := range n.Action.Inputs {
			rec.Inputs = append(rec.Inputs, in.ExecPath())
		}
		for _, out := range n.Action.Outputs {
			rec.Outputs = append(rec.Outputs, out.ExecPath())
		}
		doc.Actions = append(doc.Actions, rec)
	}
	return doc
}

// MarshalCBOR encodes the graph deterministically.
func (g *Graph) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(g.Document())
}

// MarshalJSON encodes the graph as JSON in canonical order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Document())
}
