package solver

import (
	"fmt"
	"time"
)

// Algorithm identifies the code path a solve took.
type Algorithm int

const (
	// ProjectOnly is the plain block merge/split loop.
	ProjectOnly Algorithm = iota
	// QpscWithScaling is gradient projection with diagonal Hessian scaling.
	QpscWithScaling
	// QpscWithoutScaling is gradient projection on unscaled variables.
	QpscWithoutScaling
)

func (a Algorithm) String() string {
	switch a {
	case ProjectOnly:
		return "project-only"
	case QpscWithScaling:
		return "qpsc-with-scaling"
	case QpscWithoutScaling:
		return "qpsc-without-scaling"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Algorithm serializes by name.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	for _, c := range []Algorithm{ProjectOnly, QpscWithScaling, QpscWithoutScaling} {
		if c.String() == string(text) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown algorithm %q", text)
}

// Solution summarizes a call to [Solver.Solve].
//
// Unsatisfiable constraints and exhausted limits are reported here rather
// than as errors; resolved positions are always feasible for the
// constraints that were not marked unsatisfiable.
type Solution struct {
	NumberOfUnsatisfiableConstraints int     `json:"number_of_unsatisfiable_constraints"`
	GoalFunctionValue                float64 `json:"goal_function_value"`

	MinInnerProjectIterations   int `json:"min_inner_project_iterations"`
	MaxInnerProjectIterations   int `json:"max_inner_project_iterations"`
	InnerProjectIterationsTotal int `json:"inner_project_iterations_total"`
	OuterProjectIterations      int `json:"outer_project_iterations"`
	MaxConstraintTreeDepth      int `json:"max_constraint_tree_depth"`

	AlgorithmUsed Algorithm `json:"algorithm_used"`

	OuterProjectIterationsLimitExceeded bool `json:"outer_project_iterations_limit_exceeded"`
	InnerProjectIterationsLimitExceeded bool `json:"inner_project_iterations_limit_exceeded"`
	TimeLimitExceeded                   bool `json:"time_limit_exceeded"`

	Elapsed time.Duration `json:"elapsed"`
}

// ExecutionLimitExceeded reports whether any iteration or time limit stopped
// the solve early.
func (s Solution) ExecutionLimitExceeded() bool {
	return s.OuterProjectIterationsLimitExceeded ||
		s.InnerProjectIterationsLimitExceeded ||
		s.TimeLimitExceeded
}
