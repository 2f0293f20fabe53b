package actiongraph

import "container/heap"

// validateAcyclic runs Kahn's algorithm; if not every node can be ordered the
// graph has a cycle and one witness is reported.
func (g *Graph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.nodes) {
		return nil
	}
	return cycleError(g.findCycle())
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// topoOrderIndices orders node indices topologically, always taking the ready
// node with the smallest canonical index.
func (g *Graph) topoOrderIndices() []int {
	indeg := append([]int(nil), g.indeg...)

	ready := &indexHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		out = append(out, u)
		for _, v := range g.outgoing[u] {
			indeg[v]--
			if indeg[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}
	return out
}

// findCycle returns one cycle as action IDs, first and last equal. The DFS
// visits nodes and successors in canonical order, so the witness is stable.
func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		state[u] = onStack
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch state[v] {
			case unvisited:
				if visit(v) {
					return true
				}
			case onStack:
				// Back edge u -> v: the cycle is the stack suffix from v.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append(cycle, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[u] = done
		return false
	}

	for i := range g.nodes {
		if state[i] == unvisited && visit(i) {
			break
		}
	}

	ids := make([]string, 0, len(cycle))
	for _, idx := range cycle {
		ids = append(ids, g.nodes[idx].ID)
	}
	return ids
}
