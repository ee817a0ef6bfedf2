// Package nudge spreads items along one axis so that neighbors keep a
// minimum separation, staying as close as possible to ideal positions and
// inside optional bounds.
//
// Items are registered with dense ids 0, 1, 2, ... and related by
// "i left of j" constraints. Bounds are turned into synthetic fixed items,
// cycles in the ordering are broken, and the result is handed to a
// [solver.Shell].
package nudge

import (
	"math"
	"slices"

	"github.com/matzehuels/projector/pkg/dag"
	"github.com/matzehuels/projector/pkg/dag/transform"
	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/solver"
)

type item struct {
	position float64
	ideal    float64
	width    float64
	fixed    bool
	low      float64
	high     float64
}

// UniformSolver solves one-dimensional nudging problems with a uniform
// separation between neighboring items.
type UniformSolver struct {
	separation  float64
	items       []item
	constraints [][2]int
	bounds      map[float64]int
	boundOrder  []float64

	opts     []solver.Option
	params   *solver.Parameters
	removed  []dag.Edge
	solution solver.Solution
	solved   bool
}

// NewUniformSolver creates a solver that keeps separation plus the two
// half-widths between every constrained pair.
func NewUniformSolver(separation float64, opts ...solver.Option) *UniformSolver {
	return &UniformSolver{
		separation: separation,
		bounds:     make(map[float64]int),
		opts:       opts,
	}
}

// SetParameters overrides the parameters passed to the underlying solver.
func (u *UniformSolver) SetParameters(p *solver.Parameters) { u.params = p }

// AddVariable registers a movable item. Ids must be added densely in
// increasing order starting at zero.
func (u *UniformSolver) AddVariable(id int, current, ideal, width float64) error {
	if err := u.checkNextID(id); err != nil {
		return err
	}
	if err := errors.ValidateFinite("ideal", ideal); err != nil {
		return err
	}
	if width < 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return errors.New(errors.ErrCodeInvalidArgument, "width must be finite and non-negative, got %g", width)
	}
	u.items = append(u.items, item{
		position: current,
		ideal:    ideal,
		width:    width,
		low:      math.Inf(-1),
		high:     math.Inf(1),
	})
	return nil
}

// AddFixedVariable registers an item pinned at pos with zero width.
func (u *UniformSolver) AddFixedVariable(id int, pos float64) error {
	if err := u.checkNextID(id); err != nil {
		return err
	}
	if err := errors.ValidateFinite("position", pos); err != nil {
		return err
	}
	u.items = append(u.items, item{
		position: pos,
		ideal:    pos,
		fixed:    true,
		low:      math.Inf(-1),
		high:     math.Inf(1),
	})
	return nil
}

func (u *UniformSolver) checkNextID(id int) error {
	if u.solved {
		return errors.New(errors.ErrCodeInvalidState, "cannot add items after Solve")
	}
	if id != len(u.items) {
		return errors.New(errors.ErrCodeInvalidArgument, "item ids must be dense: expected %d, got %d", len(u.items), id)
	}
	return nil
}

// SetLowBound keeps item id at or right of bound. The tightest bound wins.
func (u *UniformSolver) SetLowBound(id int, bound float64) error {
	if err := u.checkID(id); err != nil {
		return err
	}
	u.items[id].low = math.Max(u.items[id].low, bound)
	return nil
}

// SetUpperBound keeps item id at or left of bound. The tightest bound wins.
func (u *UniformSolver) SetUpperBound(id int, bound float64) error {
	if err := u.checkID(id); err != nil {
		return err
	}
	u.items[id].high = math.Min(u.items[id].high, bound)
	return nil
}

// AddConstraint requires item i to sit left of item j.
func (u *UniformSolver) AddConstraint(i, j int) error {
	if err := u.checkID(i); err != nil {
		return err
	}
	if err := u.checkID(j); err != nil {
		return err
	}
	if i == j {
		return errors.New(errors.ErrCodeInvalidArgument, "item %d cannot be left of itself", i)
	}
	u.constraints = append(u.constraints, [2]int{i, j})
	return nil
}

func (u *UniformSolver) checkID(id int) error {
	if id < 0 || id >= len(u.items) {
		return errors.New(errors.ErrCodeInvalidArgument, "unknown item %d", id)
	}
	return nil
}

// Solve places every item. It reports whether the underlying shell
// converged without exceeding a limit.
func (u *UniformSolver) Solve() (bool, error) {
	u.solved = true
	n := len(u.items)

	for _, it := range u.items {
		if it.fixed {
			continue
		}
		u.registerBound(it.low)
		u.registerBound(it.high)
	}

	g := dag.New(nil)
	for id := 0; id < n+len(u.boundOrder); id++ {
		g.EnsureNode(id)
	}
	addEdge := func(from, to int) error {
		if err := g.AddEdge(dag.Edge{From: from, To: to}); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "order %d before %d", from, to)
		}
		return nil
	}
	for _, c := range u.constraints {
		if err := addEdge(c[0], c[1]); err != nil {
			return false, err
		}
	}
	for id, it := range u.items {
		if it.fixed {
			continue
		}
		if !math.IsInf(it.low, -1) {
			if err := addEdge(u.bounds[it.low], id); err != nil {
				return false, err
			}
		}
		if !math.IsInf(it.high, 1) {
			if err := addEdge(id, u.bounds[it.high]); err != nil {
				return false, err
			}
		}
	}
	u.removed = transform.BreakCycles(g)

	sh := solver.NewShell(u.opts...)
	for id, it := range u.items {
		if it.fixed {
			sh.AddFixedVariable(id, it.position)
		} else {
			sh.AddVariableWithIdealPosition(id, it.ideal)
		}
	}
	for i, bound := range u.boundOrder {
		sh.AddFixedVariable(n+i, bound)
	}
	for _, e := range g.Edges() {
		gap := u.separation + (u.width(e.From)+u.width(e.To))/2
		sh.AddLeftRightSeparationConstraint(e.From, e.To, gap)
	}

	ok, err := sh.Solve(u.params)
	u.solution = sh.Solution()
	if err != nil {
		return false, err
	}
	for id := range u.items {
		u.items[id].position = sh.GetVariableResolvedPosition(id)
	}
	return ok, nil
}

// registerBound creates the synthetic fixed item for a finite bound value.
func (u *UniformSolver) registerBound(bound float64) {
	if math.IsInf(bound, 0) {
		return
	}
	if _, ok := u.bounds[bound]; ok {
		return
	}
	u.bounds[bound] = len(u.items) + len(u.boundOrder)
	u.boundOrder = append(u.boundOrder, bound)
}

func (u *UniformSolver) width(id int) float64 {
	if id < len(u.items) {
		return u.items[id].width
	}
	return 0
}

// Position returns the position of item id: the resolved position after
// Solve, the current position before. Unknown ids yield 0.
func (u *UniformSolver) Position(id int) float64 {
	if id < 0 || id >= len(u.items) {
		return 0
	}
	return u.items[id].position
}

// RemovedConstraints returns the ordering constraints dropped to break
// cycles, sorted by (left, right).
func (u *UniformSolver) RemovedConstraints() [][2]int {
	out := make([][2]int, 0, len(u.removed))
	for _, e := range u.removed {
		out = append(out, [2]int{e.From, e.To})
	}
	slices.SortFunc(out, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	return out
}

// Solution returns the statistics of the last underlying solve.
func (u *UniformSolver) Solution() solver.Solution { return u.solution }
