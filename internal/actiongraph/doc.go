// Package actiongraph assembles the actions registered by finished analysis
// sessions into the action graph handed to execution.
//
// Nodes are actions. A directed edge From -> To means To consumes an output of
// From. The graph is validated on construction and immutable afterwards; its
// Hash is computed from action content and canonicalized edges, so it does not
// depend on the order sessions finished in.
package actiongraph
