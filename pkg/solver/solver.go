package solver

import (
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/projector/pkg/errors"
)

// Solver minimizes Σ wᵢ(xᵢ−dᵢ)² + Σ wᵢⱼ(xᵢ−xⱼ)² subject to separation
// constraints on a single axis.
//
// Variables, constraints and neighbor pairs are registered first; the first
// call to Solve freezes the problem. Later calls to Solve re-solve from
// scratch, applying gaps queued with SetConstraintUpdate.
//
// A Solver is not safe for concurrent use.
type Solver struct {
	vars []variable
	cons []constraint

	hasNeighbors   bool
	frozen         bool
	pendingUpdates map[int]float64

	cvec         constraintVector
	blocks       blockVector
	cache        violationCache
	dfdv         dfdvWalk
	lastModified *block
	generation   uint64

	params         *Parameters
	outerLimit     int
	innerLimit     int
	cacheMinBlocks int
	deadline       time.Time
	unsatisfiable  int
	maxTreeDepth   int
	solution       Solution

	logger *log.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger used for debug output. By default the solver
// logs nothing.
func WithLogger(l *log.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty Solver.
func New(opts ...Option) *Solver {
	s := &Solver{
		pendingUpdates: make(map[int]float64),
		logger:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Registration
// =============================================================================

// AddVariable registers a variable with the given desired position.
//
// Returns ErrCodeInvalidArgument if weight or scale is not positive, or if
// desiredPos*weight or desiredPos*scale is not finite, and
// ErrCodeInvalidState once Solve has been called.
func (s *Solver) AddVariable(desiredPos float64, opts ...VariableOption) (VariableID, error) {
	if s.frozen {
		return -1, errors.New(errors.ErrCodeInvalidState, "cannot add variables after Solve")
	}
	o := variableOptions{weight: 1, scale: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if err := errors.ValidatePositive("weight", o.weight); err != nil {
		return -1, err
	}
	if err := errors.ValidatePositive("scale", o.scale); err != nil {
		return -1, err
	}
	if err := errors.ValidateFinite("desiredPos*weight", desiredPos*o.weight); err != nil {
		return -1, err
	}
	if err := errors.ValidateFinite("desiredPos*scale", desiredPos*o.scale); err != nil {
		return -1, err
	}
	s.vars = append(s.vars, variable{
		desired: desiredPos,
		weight:  o.weight,
		scale:   o.scale,
		actual:  desiredPos,
	})
	return VariableID(len(s.vars) - 1), nil
}

// AddConstraint registers left*ls + gap <= right*rs.
func (s *Solver) AddConstraint(left, right VariableID, gap float64) (ConstraintID, error) {
	return s.addConstraint(left, right, gap, false)
}

// AddEqualityConstraint registers left*ls + gap == right*rs.
func (s *Solver) AddEqualityConstraint(left, right VariableID, gap float64) (ConstraintID, error) {
	return s.addConstraint(left, right, gap, true)
}

func (s *Solver) addConstraint(left, right VariableID, gap float64, equality bool) (ConstraintID, error) {
	if s.frozen {
		return -1, errors.New(errors.ErrCodeInvalidState, "cannot add constraints after Solve")
	}
	if err := s.checkVariable(left); err != nil {
		return -1, err
	}
	if err := s.checkVariable(right); err != nil {
		return -1, err
	}
	if left == right {
		return -1, errors.New(errors.ErrCodeInvalidArgument, "constraint left and right must differ (variable %d)", left)
	}
	if err := errors.ValidateFinite("gap", gap); err != nil {
		return -1, err
	}
	ci := len(s.cons)
	s.cons = append(s.cons, constraint{left: int(left), right: int(right), gap: gap, equality: equality})
	s.vars[left].leftOf = append(s.vars[left].leftOf, ci)
	s.vars[right].rightOf = append(s.vars[right].rightOf, ci)
	return ConstraintID(ci), nil
}

// AddNeighborPair adds the goal term weight*(v1−v2)². Any neighbor pair
// switches the solve to gradient projection.
func (s *Solver) AddNeighborPair(v1, v2 VariableID, weight float64) error {
	if s.frozen {
		return errors.New(errors.ErrCodeInvalidState, "cannot add neighbor pairs after Solve")
	}
	if err := s.checkVariable(v1); err != nil {
		return err
	}
	if err := s.checkVariable(v2); err != nil {
		return err
	}
	if v1 == v2 {
		return errors.New(errors.ErrCodeInvalidArgument, "neighbor pair must join two different variables (variable %d)", v1)
	}
	if err := errors.ValidatePositive("neighbor weight", weight); err != nil {
		return err
	}
	s.vars[v1].neighbors = append(s.vars[v1].neighbors, neighbor{other: int(v2), weight: weight})
	s.vars[v2].neighbors = append(s.vars[v2].neighbors, neighbor{other: int(v1), weight: weight})
	s.hasNeighbors = true
	return nil
}

// SetConstraintUpdate queues a new gap for a constraint. It takes effect
// at the start of the next Solve.
func (s *Solver) SetConstraintUpdate(id ConstraintID, gap float64) error {
	if id < 0 || int(id) >= len(s.cons) {
		return errors.New(errors.ErrCodeInvalidArgument, "unknown constraint %d", id)
	}
	if err := errors.ValidateFinite("gap", gap); err != nil {
		return err
	}
	s.pendingUpdates[int(id)] = gap
	return nil
}

func (s *Solver) checkVariable(id VariableID) error {
	if id < 0 || int(id) >= len(s.vars) {
		return errors.New(errors.ErrCodeInvalidArgument, "unknown variable %d", id)
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

// NumVariables returns the number of registered variables.
func (s *Solver) NumVariables() int { return len(s.vars) }

// NumConstraints returns the number of registered constraints.
func (s *Solver) NumConstraints() int { return len(s.cons) }

// Position returns the resolved position of a variable, or 0 for an
// unknown id.
func (s *Solver) Position(id VariableID) float64 {
	if s.checkVariable(id) != nil {
		return 0
	}
	return s.vars[id].actual
}

// Variable returns a snapshot of a variable.
func (s *Solver) Variable(id VariableID) (Variable, bool) {
	if s.checkVariable(id) != nil {
		return Variable{}, false
	}
	v := &s.vars[id]
	return Variable{
		ID:         id,
		DesiredPos: v.desired,
		Weight:     v.weight,
		Scale:      v.scale,
		ActualPos:  v.actual,
	}, true
}

// Constraint returns a snapshot of a constraint.
func (s *Solver) Constraint(id ConstraintID) (Constraint, bool) {
	if id < 0 || int(id) >= len(s.cons) {
		return Constraint{}, false
	}
	c := &s.cons[id]
	return Constraint{
		ID:              id,
		Left:            VariableID(c.left),
		Right:           VariableID(c.right),
		Gap:             c.gap,
		IsEquality:      c.equality,
		IsActive:        s.frozen && s.isActive(int(id)),
		IsUnsatisfiable: c.unsatisfiable,
		Lagrangian:      c.lagrangian,
		Violation:       s.violation(c),
	}, true
}

// Blocks returns the current partition of variables into blocks. Before the
// first Solve every variable is its own block.
func (s *Solver) Blocks() [][]VariableID {
	if !s.frozen {
		out := make([][]VariableID, len(s.vars))
		for i := range s.vars {
			out[i] = []VariableID{VariableID(i)}
		}
		return out
	}
	out := make([][]VariableID, 0, s.blocks.len())
	for _, b := range s.blocks.blocks {
		ids := make([]VariableID, len(b.vars))
		for i, vi := range b.vars {
			ids[i] = VariableID(vi)
		}
		out = append(out, ids)
	}
	return out
}

// =============================================================================
// Solve
// =============================================================================

// Solve runs the solver and leaves resolved positions readable through
// Position. A nil p uses DefaultParameters.
//
// Unsatisfiable constraints and exhausted limits are reported in the
// Solution. An error is returned only for invalid parameters or when the
// numerics break down (ErrCodeInternal).
func (s *Solver) Solve(p *Parameters) (Solution, error) {
	if p == nil {
		p = DefaultParameters()
	}
	if err := validateParameters(p); err != nil {
		return Solution{}, err
	}
	start := time.Now()

	s.params = p
	s.solution = Solution{MinInnerProjectIterations: math.MaxInt}
	s.unsatisfiable = 0
	s.maxTreeDepth = 0
	s.outerLimit = resolveLimit(p.OuterProjectIterationsLimit, defaultOuterLimit(len(s.vars)))
	s.innerLimit = resolveLimit(p.InnerProjectIterationsLimit, defaultInnerLimit(len(s.cons)))
	s.cacheMinBlocks = p.Advanced.ViolationCacheMinBlocksCount
	if p.Advanced.ViolationCacheMinBlocksDivisor > 0 {
		s.cacheMinBlocks = max(len(s.vars)/p.Advanced.ViolationCacheMinBlocksDivisor, s.cacheMinBlocks)
	}
	s.deadline = time.Time{}
	if p.TimeLimit > 0 {
		s.deadline = start.Add(p.TimeLimit)
	}

	if err := s.initialize(); err != nil {
		return Solution{}, err
	}

	useQpsc := s.hasNeighbors || p.Advanced.ForceQpsc
	s.logger.Debug("solve started",
		"variables", len(s.vars),
		"constraints", len(s.cons),
		"qpsc", useQpsc,
		"outer_limit", s.outerLimit,
		"inner_limit", s.innerLimit)

	var err error
	if err = s.mergeEqualityConstraints(); err == nil {
		if useQpsc {
			err = s.solveQpsc()
		} else {
			s.solution.AlgorithmUsed = ProjectOnly
			err = s.solveByProject()
		}
	}
	if err != nil {
		return Solution{}, err
	}

	if s.solution.MinInnerProjectIterations == math.MaxInt {
		s.solution.MinInnerProjectIterations = 0
	}
	s.solution.NumberOfUnsatisfiableConstraints = s.unsatisfiable
	s.solution.MaxConstraintTreeDepth = s.maxTreeDepth
	s.solution.GoalFunctionValue = s.goalFunctionValue()
	s.solution.Elapsed = time.Since(start)

	s.logger.Debug("solve finished",
		"algorithm", s.solution.AlgorithmUsed,
		"outer_iterations", s.solution.OuterProjectIterations,
		"inner_iterations", s.solution.InnerProjectIterationsTotal,
		"unsatisfiable", s.unsatisfiable,
		"goal", s.solution.GoalFunctionValue,
		"limit_exceeded", s.solution.ExecutionLimitExceeded(),
		"elapsed", s.solution.Elapsed)
	return s.solution, nil
}

func validateParameters(p *Parameters) error {
	if p.GapTolerance < 0 || math.IsNaN(p.GapTolerance) || math.IsInf(p.GapTolerance, 0) {
		return errors.New(errors.ErrCodeInvalidArgument, "gap tolerance must be finite and non-negative, got %g", p.GapTolerance)
	}
	if p.TimeLimit < 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "time limit must not be negative, got %s", p.TimeLimit)
	}
	return nil
}

// initialize freezes registration on the first call and resets blocks to
// singletons on every call, applying queued gap updates.
func (s *Solver) initialize() error {
	if !s.frozen {
		s.frozen = true
		s.cvec = newConstraintVector(s.cons)
	} else {
		s.cvec.reset()
	}
	for ci, gap := range s.pendingUpdates {
		s.cons[ci].gap = gap
	}
	clear(s.pendingUpdates)
	for i := range s.cons {
		s.cons[i].unsatisfiable = false
		s.cons[i].lagrangian = 0
	}

	s.blocks = blockVector{blocks: make([]*block, 0, len(s.vars))}
	s.cache.clear()
	s.lastModified = nil
	for i := range s.vars {
		s.vars[i].offset = 0
		b := s.newBlock([]int{i})
		s.blocks.add(b)
		if err := s.updateReferencePos(b); err != nil {
			return err
		}
	}
	return nil
}

// mergeEqualityConstraints activates every equality constraint up front.
// An equality whose endpoints already share a block and disagree by more
// than the gap tolerance is unsatisfiable.
func (s *Solver) mergeEqualityConstraints() error {
	for ci := range s.cons {
		c := &s.cons[ci]
		if !c.equality {
			continue
		}
		if s.vars[c.left].block == s.vars[c.right].block {
			if math.Abs(s.violation(c)) > s.params.GapTolerance {
				c.unsatisfiable = true
				s.unsatisfiable++
				s.logger.Debug("equality constraint unsatisfiable", "constraint", ci, "violation", s.violation(c))
			}
			continue
		}
		if err := s.merge(ci); err != nil {
			return err
		}
	}
	return nil
}

// goalFunctionValue evaluates Σ w(x−d)² + Σ wᵢⱼ(xᵢ−xⱼ)² on user values.
func (s *Solver) goalFunctionValue() float64 {
	var f float64
	for i := range s.vars {
		v := &s.vars[i]
		d := v.actual - v.desired
		f += v.weight * d * d
		for _, nb := range v.neighbors {
			if nb.other > i {
				dd := v.actual - s.vars[nb.other].actual
				f += nb.weight * dd * dd
			}
		}
	}
	return f
}
