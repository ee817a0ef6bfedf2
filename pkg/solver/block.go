package solver

import (
	"math"

	"github.com/matzehuels/projector/pkg/errors"
)

// block is a set of variables rigidly linked by a spanning tree of active
// constraints. Each variable sits at offset from the block's reference
// position, measured in scaled units.
type block struct {
	vars  []int
	ref   float64
	scale float64

	sumAd, sumAb, sumA2 float64

	vectorIndex int
	generation  uint64
}

func (s *Solver) newBlock(vars []int) *block {
	b := &block{vars: vars, scale: s.vars[vars[0]].scale}
	for _, vi := range vars {
		s.vars[vi].block = b
	}
	return b
}

// updateReferencePos moves the block to the least-squares optimum of its
// variables' desired positions and refreshes their actual positions.
func (s *Solver) updateReferencePos(b *block) error {
	b.sumAd, b.sumAb, b.sumA2 = 0, 0, 0
	for _, vi := range b.vars {
		v := &s.vars[vi]
		a := b.scale / v.scale
		bb := v.offset / v.scale
		b.sumAd += a * v.weight * v.desired
		b.sumAb += a * v.weight * bb
		b.sumA2 += a * a * v.weight
	}
	ref := (b.sumAd - b.sumAb) / b.sumA2
	if math.IsNaN(ref) || math.IsInf(ref, 0) {
		return errors.New(errors.ErrCodeInternal, "block reference position is not finite (sumAd=%g sumAb=%g sumA2=%g)", b.sumAd, b.sumAb, b.sumA2)
	}
	b.ref = ref
	for _, vi := range b.vars {
		s.vars[vi].updateActual()
	}
	s.touch(b)
	return nil
}

// touch bumps the block's generation so cached violations referencing it
// are discarded.
func (s *Solver) touch(b *block) {
	s.generation++
	b.generation = s.generation
}

// merge folds the smaller of c's two blocks into the larger, making c tight
// and active.
func (s *Solver) merge(ci int) error {
	c := &s.cons[ci]
	l, r := &s.vars[c.left], &s.vars[c.right]
	lb, rb := l.block, r.block

	distance := l.offset + c.gap - r.offset
	target, moved := lb, rb
	if len(lb.vars) < len(rb.vars) {
		target, moved = rb, lb
		distance = -distance
	}
	for _, vi := range moved.vars {
		v := &s.vars[vi]
		v.offset += distance
		v.block = target
	}
	target.vars = append(target.vars, moved.vars...)
	moved.vars = nil
	s.blocks.remove(moved)

	if err := s.updateReferencePos(target); err != nil {
		return err
	}
	s.cvec.activate(ci)
	s.lastModified = target
	return nil
}

// expand resolves a violated constraint whose endpoints already share a
// block by releasing the weakest forward edge on the tree path between
// them. When no such edge exists the constraint is unsatisfiable.
func (s *Solver) expand(ci int) error {
	c := &s.cons[ci]
	b := s.vars[c.left].block
	violation := s.violation(c)

	s.computeDfDv(c.left, c.right)

	weakest := -1
	for _, step := range s.dfdv.path {
		pc := &s.cons[step.constraint]
		if !step.forward || pc.equality {
			continue
		}
		if weakest < 0 || pc.lagrangian < s.cons[weakest].lagrangian {
			weakest = step.constraint
		}
	}
	if weakest < 0 {
		c.unsatisfiable = true
		s.unsatisfiable++
		s.logger.Debug("constraint unsatisfiable", "constraint", ci, "violation", violation)
		return nil
	}

	s.cvec.deactivate(weakest)
	for _, vi := range s.connectedVars(c.right) {
		s.vars[vi].offset += violation
	}
	s.cvec.activate(ci)
	if err := s.updateReferencePos(b); err != nil {
		return err
	}
	s.lastModified = b
	return nil
}

// splitBlocks releases, in every block, the active inequality constraint
// with the most negative Lagrangian if it is below the split threshold.
// It reports whether any block was split.
func (s *Solver) splitBlocks() (bool, error) {
	snapshot := append([]*block(nil), s.blocks.blocks...)
	split := false
	for _, b := range snapshot {
		if len(b.vars) < 2 {
			continue
		}
		s.computeDfDv(b.vars[0], -1)

		weakest := -1
		for _, ci := range s.dfdv.edges {
			c := &s.cons[ci]
			if c.equality {
				continue
			}
			if weakest < 0 || c.lagrangian < s.cons[weakest].lagrangian {
				weakest = ci
			}
		}
		if weakest < 0 || s.cons[weakest].lagrangian >= s.params.Advanced.MinSplitLagrangianThreshold {
			continue
		}

		s.cvec.deactivate(weakest)
		moved := s.connectedVars(s.cons[weakest].right)
		inMoved := make(map[int]struct{}, len(moved))
		for _, vi := range moved {
			inMoved[vi] = struct{}{}
		}
		kept := b.vars[:0]
		for _, vi := range b.vars {
			if _, ok := inMoved[vi]; !ok {
				kept = append(kept, vi)
			}
		}
		b.vars = kept
		b.scale = s.vars[b.vars[0]].scale
		nb := s.newBlock(moved)
		s.blocks.add(nb)
		if err := s.updateReferencePos(b); err != nil {
			return false, err
		}
		if err := s.updateReferencePos(nb); err != nil {
			return false, err
		}
		split = true
	}
	return split, nil
}

// connectedVars returns the variables reachable from start over active
// constraints.
func (s *Solver) connectedVars(start int) []int {
	out := []int{start}
	seen := map[int]struct{}{start: {}}
	for i := 0; i < len(out); i++ {
		v := &s.vars[out[i]]
		for _, list := range [2][]int{v.leftOf, v.rightOf} {
			for _, ci := range list {
				if !s.isActive(ci) {
					continue
				}
				c := &s.cons[ci]
				other := c.left
				if other == out[i] {
					other = c.right
				}
				if _, ok := seen[other]; ok {
					continue
				}
				seen[other] = struct{}{}
				out = append(out, other)
			}
		}
	}
	return out
}
