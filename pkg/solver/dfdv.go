package solver

// dfdvNode is one entry of the tree walk arena.
type dfdvNode struct {
	variable   int
	parent     int // arena index, -1 for the root
	constraint int // constraint linking to parent, -1 for the root
	depth      int
	sum        float64
	expanded   bool
}

type pathStep struct {
	constraint int
	forward    bool // traversed from its Left to its Right
}

// dfdvWalk holds reusable buffers for computeDfDv.
type dfdvWalk struct {
	arena []dfdvNode
	stack []int
	edges []int      // active constraints visited, in post-order
	path  []pathStep // root-to-target path, when a target was given
}

// computeDfDv walks the active constraint tree containing root and sets the
// Lagrangian of every tree edge. A child's subtree sum of dF/dv becomes the
// multiplier of the edge to its parent, negated when the child is the
// edge's Left side. The walk uses an explicit stack so long chains do not
// grow the goroutine stack.
//
// If target >= 0 the path from root to target is recorded in walk.path.
func (s *Solver) computeDfDv(root, target int) {
	w := &s.dfdv
	w.arena = w.arena[:0]
	w.stack = w.stack[:0]
	w.edges = w.edges[:0]
	w.path = w.path[:0]

	w.arena = append(w.arena, dfdvNode{variable: root, parent: -1, constraint: -1})
	w.stack = append(w.stack, 0)
	targetNode := -1

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		n := &w.arena[top]
		if !n.expanded {
			n.expanded = true
			n.sum = s.vars[n.variable].dfdv()
			if n.depth > s.maxTreeDepth {
				s.maxTreeDepth = n.depth
			}
			if n.variable == target {
				targetNode = top
			}
			vi, parentCons, depth := n.variable, n.constraint, n.depth
			v := &s.vars[vi]
			for _, list := range [2][]int{v.leftOf, v.rightOf} {
				for _, ci := range list {
					if ci == parentCons || !s.isActive(ci) {
						continue
					}
					c := &s.cons[ci]
					child := c.left
					if child == vi {
						child = c.right
					}
					w.arena = append(w.arena, dfdvNode{
						variable:   child,
						parent:     top,
						constraint: ci,
						depth:      depth + 1,
					})
					w.stack = append(w.stack, len(w.arena)-1)
				}
			}
			continue
		}

		w.stack = w.stack[:len(w.stack)-1]
		if n.parent < 0 {
			continue
		}
		c := &s.cons[n.constraint]
		if n.variable == c.right {
			c.lagrangian = n.sum
		} else {
			c.lagrangian = -n.sum
		}
		w.arena[n.parent].sum += n.sum
		w.edges = append(w.edges, n.constraint)
	}

	for ni := targetNode; ni > 0; ni = w.arena[ni].parent {
		n := &w.arena[ni]
		w.path = append(w.path, pathStep{
			constraint: n.constraint,
			forward:    n.variable == s.cons[n.constraint].right,
		})
	}
}
