package transform

import "github.com/matzehuels/projector/pkg/dag"

// BreakCycles removes every back edge found by a depth-first search and
// returns the removed edges. The search starts from sources in ascending ID
// order, then from any node still unvisited, and follows children in
// insertion order, so the same graph always loses the same edges.
func BreakCycles(g *dag.DAG) []dag.Edge {
	const (
		white = iota
		gray
		black
	)

	color := make(map[int]int, g.NodeCount())
	var backEdges []dag.Edge

	type frame struct {
		node int
		next int
	}
	visit := func(root int) {
		stack := []frame{{node: root}}
		color[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Children(top.node)
			if top.next == len(children) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, frame{node: child})
			case gray:
				backEdges = append(backEdges, dag.Edge{From: top.node, To: child})
			}
		}
	}

	for _, n := range g.Sources() {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}
	for _, id := range g.NodeIDs() {
		if color[id] == white {
			visit(id)
		}
	}

	for _, e := range backEdges {
		g.RemoveEdge(e.From, e.To)
	}
	return backEdges
}
