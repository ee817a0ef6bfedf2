package solver

// ConstraintID is an opaque handle returned by [Solver.AddConstraint] and
// [Solver.AddEqualityConstraint].
type ConstraintID int

type constraint struct {
	left, right int
	gap         float64
	equality    bool

	unsatisfiable bool
	vectorIndex   int
	lagrangian    float64
}

// Constraint is a read-only view of a registered constraint.
type Constraint struct {
	ID              ConstraintID
	Left            VariableID
	Right           VariableID
	Gap             float64
	IsEquality      bool
	IsActive        bool
	IsUnsatisfiable bool
	Lagrangian      float64
	Violation       float64
}

// violation returns left*ls + gap - right*rs. Positive means infeasible.
func (s *Solver) violation(c *constraint) float64 {
	l, r := &s.vars[c.left], &s.vars[c.right]
	return l.actual*l.scale + c.gap - r.actual*r.scale
}

func (s *Solver) isActive(ci int) bool {
	return s.cons[ci].vectorIndex < s.cvec.numActive
}
