package solver

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/matzehuels/projector/pkg/errors"
)

const eps = 1e-6

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func mustVar(t *testing.T, s *Solver, desired float64, opts ...VariableOption) VariableID {
	t.Helper()
	id, err := s.AddVariable(desired, opts...)
	if err != nil {
		t.Fatalf("AddVariable(%g): %v", desired, err)
	}
	return id
}

func mustCons(t *testing.T, s *Solver, l, r VariableID, gap float64) ConstraintID {
	t.Helper()
	id, err := s.AddConstraint(l, r, gap)
	if err != nil {
		t.Fatalf("AddConstraint(%d, %d, %g): %v", l, r, gap, err)
	}
	return id
}

func mustSolve(t *testing.T, s *Solver, p *Parameters) Solution {
	t.Helper()
	sol, err := s.Solve(p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return sol
}

// checkFeasible fails the test if any satisfiable constraint is violated.
func checkFeasible(t *testing.T, s *Solver, tol float64) {
	t.Helper()
	for i := 0; i < s.NumConstraints(); i++ {
		c, _ := s.Constraint(ConstraintID(i))
		if c.IsUnsatisfiable {
			continue
		}
		if c.IsEquality {
			if math.Abs(c.Violation) > tol {
				t.Errorf("equality constraint %d violated by %g", i, c.Violation)
			}
		} else if c.Violation > tol {
			t.Errorf("constraint %d violated by %g", i, c.Violation)
		}
	}
}

// checkPartition fails the test unless blocks partition the variables.
func checkPartition(t *testing.T, s *Solver) {
	t.Helper()
	seen := make(map[VariableID]bool)
	for _, b := range s.Blocks() {
		if len(b) == 0 {
			t.Error("empty block")
		}
		for _, id := range b {
			if seen[id] {
				t.Errorf("variable %d appears in more than one block", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != s.NumVariables() {
		t.Errorf("blocks cover %d variables, want %d", len(seen), s.NumVariables())
	}
}

func TestSolveTwoVariables(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 10)
	mustCons(t, s, a, b, 20)

	sol := mustSolve(t, s, nil)

	if !approx(s.Position(a), -5, eps) || !approx(s.Position(b), 15, eps) {
		t.Errorf("positions = (%g, %g), want (-5, 15)", s.Position(a), s.Position(b))
	}
	if !approx(s.Position(b)-s.Position(a), 20, eps) {
		t.Errorf("gap = %g, want 20", s.Position(b)-s.Position(a))
	}
	if sol.NumberOfUnsatisfiableConstraints != 0 {
		t.Errorf("unsatisfiable = %d, want 0", sol.NumberOfUnsatisfiableConstraints)
	}
	if sol.AlgorithmUsed != ProjectOnly {
		t.Errorf("algorithm = %v, want %v", sol.AlgorithmUsed, ProjectOnly)
	}
	if !approx(sol.GoalFunctionValue, 50, eps) {
		t.Errorf("goal = %g, want 50", sol.GoalFunctionValue)
	}
	if c, _ := s.Constraint(0); !c.IsActive {
		t.Error("tight constraint should be active")
	}
}

func TestSolveChain(t *testing.T) {
	s := New()
	v0 := mustVar(t, s, 0)
	v1 := mustVar(t, s, 0)
	v2 := mustVar(t, s, 0)
	mustCons(t, s, v0, v1, 5)
	mustCons(t, s, v1, v2, 5)

	mustSolve(t, s, nil)

	// Minimizer of x0² + x1² + x2² with x1 >= x0+5, x2 >= x1+5.
	want := []float64{-5, 0, 5}
	for i, id := range []VariableID{v0, v1, v2} {
		if got := s.Position(id); !approx(got, want[i], eps) {
			t.Errorf("v%d = %g, want %g", i, got, want[i])
		}
	}
	checkFeasible(t, s, DefaultGapTolerance)
	if got := len(s.Blocks()); got != 1 {
		t.Errorf("blocks = %d, want 1", got)
	}
}

func TestSolveEqualityCycle(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 0)
	c := mustVar(t, s, 0)
	for _, e := range []struct {
		l, r VariableID
		gap  float64
	}{{a, b, 3}, {b, c, 3}, {a, c, 9}} {
		if _, err := s.AddEqualityConstraint(e.l, e.r, e.gap); err != nil {
			t.Fatalf("AddEqualityConstraint: %v", err)
		}
	}

	sol := mustSolve(t, s, nil)

	if sol.NumberOfUnsatisfiableConstraints != 1 {
		t.Errorf("unsatisfiable = %d, want 1", sol.NumberOfUnsatisfiableConstraints)
	}
	if c2, _ := s.Constraint(2); !c2.IsUnsatisfiable {
		t.Error("closing equality should be unsatisfiable")
	}
	if !approx(s.Position(b)-s.Position(a), 3, eps) || !approx(s.Position(c)-s.Position(b), 3, eps) {
		t.Errorf("positions = (%g, %g, %g), want gaps of 3", s.Position(a), s.Position(b), s.Position(c))
	}
	checkFeasible(t, s, DefaultGapTolerance)
}

func TestSolveConsistentEqualityCycle(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 0)
	c := mustVar(t, s, 0)
	s.AddEqualityConstraint(a, b, 3)
	s.AddEqualityConstraint(b, c, 3)
	s.AddEqualityConstraint(a, c, 6)

	sol := mustSolve(t, s, nil)
	if sol.NumberOfUnsatisfiableConstraints != 0 {
		t.Errorf("unsatisfiable = %d, want 0", sol.NumberOfUnsatisfiableConstraints)
	}
	if !approx(s.Position(a), -3, eps) || !approx(s.Position(c), 3, eps) {
		t.Errorf("positions = (%g, %g, %g), want (-3, 0, 3)", s.Position(a), s.Position(b), s.Position(c))
	}
}

func TestSolveExpand(t *testing.T) {
	// The last merge leaves a+6 <= b violated inside one block; expanding
	// releases a+5 <= c, the only forward edge on the tree path.
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 0)
	c := mustVar(t, s, 10)
	e := mustVar(t, s, -20)
	mustCons(t, s, a, b, 6)
	mustCons(t, s, b, c, 1)
	released := mustCons(t, s, a, c, 5)
	mustCons(t, s, c, e, 1)

	sol := mustSolve(t, s, nil)

	want := map[VariableID]float64{a: -7.75, b: -1.75, c: -0.75, e: 0.25}
	for id, w := range want {
		if got := s.Position(id); !approx(got, w, eps) {
			t.Errorf("x[%d] = %g, want %g", id, got, w)
		}
	}
	if info, _ := s.Constraint(released); info.IsActive {
		t.Error("released constraint should be inactive")
	}
	if sol.NumberOfUnsatisfiableConstraints != 0 {
		t.Errorf("unsatisfiable = %d, want 0", sol.NumberOfUnsatisfiableConstraints)
	}
	checkFeasible(t, s, DefaultGapTolerance)
	checkPartition(t, s)
}

func TestSolveInequalityCycleUnsatisfiable(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 0)
	mustCons(t, s, a, b, 1)
	mustCons(t, s, b, a, 1)

	sol := mustSolve(t, s, nil)
	if sol.NumberOfUnsatisfiableConstraints != 1 {
		t.Errorf("unsatisfiable = %d, want 1", sol.NumberOfUnsatisfiableConstraints)
	}
	checkFeasible(t, s, DefaultGapTolerance)
}

func TestSolveSatisfiedConstraintStaysInactive(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 100)
	mustCons(t, s, a, b, 1)
	sol := mustSolve(t, s, nil)

	if !approx(s.Position(a), 0, eps) || !approx(s.Position(b), 100, eps) {
		t.Errorf("positions = (%g, %g), want (0, 100)", s.Position(a), s.Position(b))
	}
	if sol.InnerProjectIterationsTotal != 0 {
		t.Errorf("inner iterations = %d, want 0", sol.InnerProjectIterationsTotal)
	}
	if sol.OuterProjectIterations != 1 {
		t.Errorf("outer iterations = %d, want 1", sol.OuterProjectIterations)
	}
	if got := len(s.Blocks()); got != 2 {
		t.Errorf("blocks = %d, want 2", got)
	}
}

func TestSolveScaledVariables(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0, WithScale(2))
	b := mustVar(t, s, 0)
	mustCons(t, s, a, b, 4)

	mustSolve(t, s, nil)

	// 2a + 4 = b; minimize a² + b².
	wantA := -8.0 / 5
	wantB := 2*wantA + 4
	if !approx(s.Position(a), wantA, eps) || !approx(s.Position(b), wantB, eps) {
		t.Errorf("positions = (%g, %g), want (%g, %g)", s.Position(a), s.Position(b), wantA, wantB)
	}
	checkFeasible(t, s, DefaultGapTolerance)
}

func TestSolveWeights(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0, WithWeight(3))
	b := mustVar(t, s, 0)
	mustCons(t, s, a, b, 4)

	mustSolve(t, s, nil)
	if !approx(s.Position(a), -1, eps) || !approx(s.Position(b), 3, eps) {
		t.Errorf("positions = (%g, %g), want (-1, 3)", s.Position(a), s.Position(b))
	}
}

func TestSolveIdempotent(t *testing.T) {
	s := randomProblem(60, 150, 7)
	mustSolve(t, s, nil)
	first := positions(s)
	mustSolve(t, s, nil)
	second := positions(s)
	for i := range first {
		if !approx(first[i], second[i], 1e-9) {
			t.Fatalf("x[%d]: %g then %g", i, first[i], second[i])
		}
	}
}

func TestSolveRandomFeasible(t *testing.T) {
	tests := []struct {
		name       string
		vars, cons int
		useCache   bool
	}{
		{"small", 10, 20, true},
		{"medium", 80, 200, true},
		{"large with cache", 400, 1200, true},
		{"large without cache", 400, 1200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := randomProblem(tt.vars, tt.cons, 42)
			p := DefaultParameters()
			p.Advanced.UseViolationCache = tt.useCache
			p.OuterProjectIterationsLimit = 0
			p.InnerProjectIterationsLimit = 0

			sol := mustSolve(t, s, p)
			if sol.NumberOfUnsatisfiableConstraints != 0 {
				t.Errorf("unsatisfiable = %d, want 0 for an acyclic system", sol.NumberOfUnsatisfiableConstraints)
			}
			if sol.ExecutionLimitExceeded() {
				t.Error("unexpected limit exceeded with unlimited iterations")
			}
			checkFeasible(t, s, p.GapTolerance)
			checkPartition(t, s)
		})
	}
}

func TestSolveCacheMatchesFullScan(t *testing.T) {
	withCache := randomProblem(300, 900, 3)
	without := randomProblem(300, 900, 3)

	p := DefaultParameters()
	sa := mustSolve(t, withCache, p)
	q := DefaultParameters()
	q.Advanced.UseViolationCache = false
	sb := mustSolve(t, without, q)

	// Both reach a KKT point of a strictly convex problem.
	if !approx(sa.GoalFunctionValue, sb.GoalFunctionValue, 1e-3*math.Max(1, sb.GoalFunctionValue)) {
		t.Errorf("goal with cache = %g, without = %g", sa.GoalFunctionValue, sb.GoalFunctionValue)
	}
}

func TestSolveInnerLimit(t *testing.T) {
	s := randomProblem(50, 120, 11)
	p := DefaultParameters()
	p.InnerProjectIterationsLimit = 1

	sol := mustSolve(t, s, p)
	if !sol.InnerProjectIterationsLimitExceeded {
		t.Error("expected inner limit to be exceeded")
	}
	if !sol.ExecutionLimitExceeded() {
		t.Error("ExecutionLimitExceeded() = false, want true")
	}
	if sol.MaxInnerProjectIterations != 1 {
		t.Errorf("max inner iterations = %d, want 1", sol.MaxInnerProjectIterations)
	}
}

func TestSolveTimeLimit(t *testing.T) {
	s := randomProblem(50, 120, 5)
	p := DefaultParameters()
	p.TimeLimit = time.Nanosecond

	sol := mustSolve(t, s, p)
	if !sol.TimeLimitExceeded {
		t.Error("expected time limit to be exceeded")
	}
}

func TestSetConstraintUpdate(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 10)
	c := mustCons(t, s, a, b, 20)
	mustSolve(t, s, nil)

	if err := s.SetConstraintUpdate(c, 10); err != nil {
		t.Fatalf("SetConstraintUpdate: %v", err)
	}
	// Deferred until the next solve.
	if !approx(s.Position(a), -5, eps) {
		t.Errorf("position changed before re-solve: %g", s.Position(a))
	}

	mustSolve(t, s, nil)
	if !approx(s.Position(a), 0, eps) || !approx(s.Position(b), 10, eps) {
		t.Errorf("positions = (%g, %g), want (0, 10)", s.Position(a), s.Position(b))
	}

	if err := s.SetConstraintUpdate(99, 1); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("unknown constraint: err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestAddVariableValidation(t *testing.T) {
	tests := []struct {
		name    string
		desired float64
		opts    []VariableOption
		wantErr bool
	}{
		{"defaults", 3, nil, false},
		{"weighted", 3, []VariableOption{WithWeight(2), WithScale(0.5)}, false},
		{"zero weight", 0, []VariableOption{WithWeight(0)}, true},
		{"negative weight", 0, []VariableOption{WithWeight(-1)}, true},
		{"zero scale", 0, []VariableOption{WithScale(0)}, true},
		{"NaN desired", math.NaN(), nil, true},
		{"infinite desired", math.Inf(1), nil, true},
		{"overflowing product", 1e300, []VariableOption{WithWeight(1e10)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().AddVariable(tt.desired, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidArgument) {
				t.Errorf("code = %s, want INVALID_ARGUMENT", errors.GetCode(err))
			}
		})
	}
}

func TestAddConstraintValidation(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 1)

	if _, err := s.AddConstraint(a, a, 1); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("self constraint: err = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := s.AddConstraint(a, 7, 1); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("unknown variable: err = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := s.AddConstraint(a, b, math.NaN()); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("NaN gap: err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestAddNeighborPairValidation(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
	}{
		{"zero", 0},
		{"negative", -2},
		{"NaN", math.NaN()},
		{"infinite", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			a := mustVar(t, s, 0)
			b := mustVar(t, s, 1)
			if err := s.AddNeighborPair(a, b, tt.weight); !errors.Is(err, errors.ErrCodeInvalidArgument) {
				t.Errorf("err = %v, want INVALID_ARGUMENT", err)
			}
		})
	}
}

func TestRegistrationAfterSolve(t *testing.T) {
	s := New()
	a := mustVar(t, s, 0)
	b := mustVar(t, s, 1)
	mustSolve(t, s, nil)

	if _, err := s.AddVariable(0); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("AddVariable: err = %v, want INVALID_STATE", err)
	}
	if _, err := s.AddConstraint(a, b, 1); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("AddConstraint: err = %v, want INVALID_STATE", err)
	}
	if err := s.AddNeighborPair(a, b, 1); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("AddNeighborPair: err = %v, want INVALID_STATE", err)
	}
}

func TestSolveInvalidParameters(t *testing.T) {
	s := New()
	mustVar(t, s, 0)
	p := DefaultParameters()
	p.GapTolerance = -1
	if _, err := s.Solve(p); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestPositionUnknown(t *testing.T) {
	s := New()
	if got := s.Position(3); got != 0 {
		t.Errorf("Position(unknown) = %g, want 0", got)
	}
	if _, ok := s.Variable(3); ok {
		t.Error("Variable(unknown) ok = true")
	}
	if _, ok := s.Constraint(0); ok {
		t.Error("Constraint(unknown) ok = true")
	}
}

func TestDefaultLimits(t *testing.T) {
	tests := []struct {
		n, outer, inner int
	}{
		{0, 100, 0},
		{1, 100, 2},
		{2, 200, 104},
		{8, 400, 316},
		{1000, 1000, 2900},
	}
	for _, tt := range tests {
		if got := defaultOuterLimit(tt.n); got != tt.outer {
			t.Errorf("defaultOuterLimit(%d) = %d, want %d", tt.n, got, tt.outer)
		}
		if got := defaultInnerLimit(tt.n); got != tt.inner {
			t.Errorf("defaultInnerLimit(%d) = %d, want %d", tt.n, got, tt.inner)
		}
	}
	if resolveLimit(-1, 7) != 7 || resolveLimit(0, 7) != 0 || resolveLimit(3, 7) != 3 {
		t.Error("resolveLimit sign convention broken")
	}
}

// randomProblem builds an acyclic system: constraints always point from a
// lower to a higher variable index, so every constraint is satisfiable.
func randomProblem(numVars, numCons int, seed int64) *Solver {
	rng := rand.New(rand.NewSource(seed))
	s := New()
	for i := 0; i < numVars; i++ {
		s.AddVariable(rng.Float64()*100, WithWeight(0.5+rng.Float64()))
	}
	for i := 0; i < numCons; i++ {
		l := rng.Intn(numVars - 1)
		r := l + 1 + rng.Intn(min(5, numVars-l-1))
		s.AddConstraint(VariableID(l), VariableID(r), 1+rng.Float64()*5)
	}
	return s
}

func positions(s *Solver) []float64 {
	out := make([]float64, s.NumVariables())
	for i := range out {
		out[i] = s.Position(VariableID(i))
	}
	return out
}
