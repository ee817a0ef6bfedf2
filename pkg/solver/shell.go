package solver

import (
	"io"
	"math"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/projector/pkg/errors"
)

// Shell constants.
const (
	// FixedVarWeight is the weight given to variables pinned by AddFixedVariable.
	FixedVarWeight = 1e9

	// FailToAdjustEpsilon is the cumulative gap shrink factor below which
	// the shell gives up pulling a fixed variable back into place.
	FailToAdjustEpsilon = 0.001

	fixedVarTolerance  = 5e-4
	maxAdjustRounds    = 100
	defaultShrinkRatio = 0.5
)

type shellConstraint struct {
	left, right int
	gap         float64
	equality    bool
	id          ConstraintID
}

type shellPair struct {
	a, b   int
	weight float64
}

type shellVariable struct {
	ideal  float64
	weight float64
	handle VariableID
}

// Shell wraps a Solver behind caller-chosen integer ids and keeps fixed
// variables in place. If a fixed variable drifts after a solve, the gaps of
// the constraints touching it are shrunk and the problem re-solved.
type Shell struct {
	vars        map[int]*shellVariable
	order       []int
	fixed       map[int]float64
	constraints []shellConstraint
	pairs       []shellPair

	opts     []Option
	solver   *Solver
	solution Solution
	logger   *log.Logger
}

// NewShell creates an empty Shell. Options are passed to the Solver it builds.
func NewShell(opts ...Option) *Shell {
	return &Shell{
		vars:   make(map[int]*shellVariable),
		fixed:  make(map[int]float64),
		opts:   opts,
		logger: log.New(io.Discard),
	}
}

// AddVariableWithIdealPosition registers id with an ideal position and weight 1.
func (sh *Shell) AddVariableWithIdealPosition(id int, ideal float64) {
	sh.AddVariableWithIdealPositionAndWeight(id, ideal, 1)
}

// AddVariableWithIdealPositionAndWeight registers id, replacing any earlier
// registration of the same id.
func (sh *Shell) AddVariableWithIdealPositionAndWeight(id int, ideal, weight float64) {
	if _, ok := sh.vars[id]; !ok {
		sh.order = append(sh.order, id)
	}
	sh.vars[id] = &shellVariable{ideal: ideal, weight: weight, handle: -1}
	sh.solver = nil
}

// AddFixedVariable pins id at pos.
func (sh *Shell) AddFixedVariable(id int, pos float64) {
	sh.AddVariableWithIdealPositionAndWeight(id, pos, FixedVarWeight)
	sh.fixed[id] = pos
}

// ContainsVariable reports whether id was registered.
func (sh *Shell) ContainsVariable(id int) bool {
	_, ok := sh.vars[id]
	return ok
}

// GetVariableIdealPosition returns the ideal position of id, or 0 if unknown.
func (sh *Shell) GetVariableIdealPosition(id int) float64 {
	if v, ok := sh.vars[id]; ok {
		return v.ideal
	}
	return 0
}

// AddLeftRightSeparationConstraint requires left + gap <= right.
func (sh *Shell) AddLeftRightSeparationConstraint(left, right int, gap float64) {
	sh.AddLeftRightSeparationConstraintWithEquality(left, right, gap, false)
}

// AddLeftRightSeparationConstraintWithEquality requires left + gap <= right,
// or left + gap == right when equality is set.
func (sh *Shell) AddLeftRightSeparationConstraintWithEquality(left, right int, gap float64, equality bool) {
	sh.constraints = append(sh.constraints, shellConstraint{left: left, right: right, gap: gap, equality: equality, id: -1})
	sh.solver = nil
}

// AddGoalTwoVariablesAreClose adds a neighbor term with weight 1.
func (sh *Shell) AddGoalTwoVariablesAreClose(a, b int) {
	sh.AddGoalTwoVariablesAreCloseWithWeight(a, b, 1)
}

// AddGoalTwoVariablesAreCloseWithWeight adds weight*(a−b)² to the goal.
func (sh *Shell) AddGoalTwoVariablesAreCloseWithWeight(a, b int, weight float64) {
	sh.pairs = append(sh.pairs, shellPair{a: a, b: b, weight: weight})
	sh.solver = nil
}

// InitSolver builds a fresh Solver from the registered definitions.
func (sh *Shell) InitSolver() error {
	s := New(sh.opts...)
	sh.logger = s.logger
	for _, id := range sh.order {
		v := sh.vars[id]
		h, err := s.AddVariable(v.ideal, WithWeight(v.weight))
		if err != nil {
			return errors.Wrap(errors.GetCode(err), err, "variable %d", id)
		}
		v.handle = h
	}
	for i := range sh.constraints {
		c := &sh.constraints[i]
		l, err := sh.handle(c.left)
		if err != nil {
			return err
		}
		r, err := sh.handle(c.right)
		if err != nil {
			return err
		}
		if c.equality {
			c.id, err = s.AddEqualityConstraint(l, r, c.gap)
		} else {
			c.id, err = s.AddConstraint(l, r, c.gap)
		}
		if err != nil {
			return errors.Wrap(errors.GetCode(err), err, "constraint %d -> %d", c.left, c.right)
		}
	}
	for _, p := range sh.pairs {
		a, err := sh.handle(p.a)
		if err != nil {
			return err
		}
		b, err := sh.handle(p.b)
		if err != nil {
			return err
		}
		if err := s.AddNeighborPair(a, b, p.weight); err != nil {
			return errors.Wrap(errors.GetCode(err), err, "neighbor pair %d, %d", p.a, p.b)
		}
	}
	sh.solver = s
	return nil
}

func (sh *Shell) handle(id int) (VariableID, error) {
	v, ok := sh.vars[id]
	if !ok {
		return -1, errors.New(errors.ErrCodeInvalidArgument, "unknown variable %d", id)
	}
	return v.handle, nil
}

// Solve solves the problem and then pulls drifted fixed variables back by
// shrinking the gaps around them. It returns false if a limit was exceeded
// or a fixed variable could not be brought back into place.
func (sh *Shell) Solve(p *Parameters) (bool, error) {
	if sh.solver == nil {
		if err := sh.InitSolver(); err != nil {
			return false, err
		}
	}

	factors := make(map[int]float64)
	for round := 0; ; round++ {
		sol, err := sh.solver.Solve(p)
		if err != nil {
			return false, err
		}
		sh.solution = sol
		if sol.ExecutionLimitExceeded() {
			return false, nil
		}

		moved := sh.movedFixedVariables()
		if len(moved) == 0 {
			return true, nil
		}
		if round >= maxAdjustRounds {
			sh.logger.Debug("fixed variables still drifting", "rounds", round, "moved", len(moved))
			return false, nil
		}
		for _, id := range moved {
			if !sh.adjustConstraintsOfNeighborsOfFixedVariable(id, factors) {
				sh.logger.Debug("cannot hold fixed variable", "id", id, "factor", factors[id])
				return false, nil
			}
		}
	}
}

// movedFixedVariables returns the fixed variables, in ascending id order,
// that drifted beyond tolerance.
func (sh *Shell) movedFixedVariables() []int {
	var moved []int
	for id, pos := range sh.fixed {
		if math.Abs(sh.GetVariableResolvedPosition(id)-pos) > fixedVarTolerance {
			moved = append(moved, id)
		}
	}
	slices.Sort(moved)
	return moved
}

// adjustConstraintsOfNeighborsOfFixedVariable shrinks the gaps of every
// constraint incident to id by span/(span+drift), where span covers the
// resolved positions of id and its constraint neighbors.
func (sh *Shell) adjustConstraintsOfNeighborsOfFixedVariable(id int, factors map[int]float64) bool {
	drift := math.Abs(sh.GetVariableResolvedPosition(id) - sh.fixed[id])

	var span realNumberSpan
	span.add(sh.GetVariableResolvedPosition(id))
	var incident []int
	for i, c := range sh.constraints {
		if c.left != id && c.right != id {
			continue
		}
		incident = append(incident, i)
		span.add(sh.GetVariableResolvedPosition(c.left))
		span.add(sh.GetVariableResolvedPosition(c.right))
	}
	if len(incident) == 0 {
		return false
	}

	ratio := defaultShrinkRatio
	if l := span.length(); l > fixedVarTolerance {
		ratio = l / (l + drift)
	}
	f, ok := factors[id]
	if !ok {
		f = 1
	}
	f *= ratio
	factors[id] = f
	if f < FailToAdjustEpsilon {
		return false
	}

	for _, i := range incident {
		c := &sh.constraints[i]
		c.gap *= ratio
		if err := sh.solver.SetConstraintUpdate(c.id, c.gap); err != nil {
			return false
		}
	}
	return true
}

// GetVariableResolvedPosition returns the solved position of id, or 0 if
// id is unknown or nothing has been solved yet.
func (sh *Shell) GetVariableResolvedPosition(id int) float64 {
	v, ok := sh.vars[id]
	if !ok || sh.solver == nil || v.handle < 0 {
		return 0
	}
	return sh.solver.Position(v.handle)
}

// Solution returns the summary of the last solve.
func (sh *Shell) Solution() Solution { return sh.solution }

// realNumberSpan tracks the min and max of a set of values.
type realNumberSpan struct {
	min, max float64
	set      bool
}

func (r *realNumberSpan) add(v float64) {
	if !r.set {
		r.min, r.max, r.set = v, v, true
		return
	}
	r.min = math.Min(r.min, v)
	r.max = math.Max(r.max, v)
}

func (r *realNumberSpan) length() float64 {
	if !r.set {
		return 0
	}
	return r.max - r.min
}
