package solver

import (
	"math"
	"time"
)

// Default tuning values. These are the values [DefaultParameters] returns.
const (
	DefaultGapTolerance                   = 1e-4
	DefaultQpscConvergenceEpsilon         = 1e-5
	DefaultQpscConvergenceQuotient        = 1e-6
	DefaultMinSplitLagrangianThreshold    = -1e-7
	DefaultViolationCacheMinBlocksDivisor = 10
	DefaultViolationCacheMinBlocksCount   = 100
)

// Parameters control a single call to [Solver.Solve].
//
// Iteration limits use a sign convention: a negative value selects the
// default computed from the problem size, zero means unlimited, and a
// positive value is used as given.
type Parameters struct {
	// GapTolerance is the amount by which a constraint may be violated and
	// still be considered satisfied.
	GapTolerance float64 `toml:"gap_tolerance" json:"gap_tolerance"`

	// QpscConvergenceEpsilon is the absolute decrease of the goal function
	// below which a QPSC pass is considered converged.
	QpscConvergenceEpsilon float64 `toml:"qpsc_convergence_epsilon" json:"qpsc_convergence_epsilon"`

	// QpscConvergenceQuotient is the relative decrease of the goal function
	// below which a QPSC pass is considered converged.
	QpscConvergenceQuotient float64 `toml:"qpsc_convergence_quotient" json:"qpsc_convergence_quotient"`

	// OuterProjectIterationsLimit bounds the number of Project passes.
	// Default: 100 * (floor(log2(variables)) + 1).
	OuterProjectIterationsLimit int `toml:"outer_project_iterations_limit" json:"outer_project_iterations_limit"`

	// InnerProjectIterationsLimit bounds the merges/expansions of one Project
	// pass. Default: 2*constraints + 100*max(0, floor(log2(constraints))).
	InnerProjectIterationsLimit int `toml:"inner_project_iterations_limit" json:"inner_project_iterations_limit"`

	// TimeLimit bounds the wall-clock duration of a solve. Zero disables it.
	TimeLimit time.Duration `toml:"time_limit" json:"time_limit"`

	Advanced AdvancedParameters `toml:"advanced" json:"advanced"`
}

// AdvancedParameters are knobs mostly useful for testing and benchmarking.
type AdvancedParameters struct {
	// ForceQpsc runs the gradient projection path even without neighbor pairs.
	ForceQpsc bool `toml:"force_qpsc" json:"force_qpsc"`

	// ScaleInQpsc enables diagonal scaling from the Hessian.
	ScaleInQpsc bool `toml:"scale_in_qpsc" json:"scale_in_qpsc"`

	// MinSplitLagrangianThreshold is the Lagrangian below which an active
	// constraint is split out of its block.
	MinSplitLagrangianThreshold float64 `toml:"min_split_lagrangian_threshold" json:"min_split_lagrangian_threshold"`

	UseViolationCache              bool `toml:"use_violation_cache" json:"use_violation_cache"`
	ViolationCacheMinBlocksDivisor int  `toml:"violation_cache_min_blocks_divisor" json:"violation_cache_min_blocks_divisor"`
	ViolationCacheMinBlocksCount   int  `toml:"violation_cache_min_blocks_count" json:"violation_cache_min_blocks_count"`
}

// DefaultParameters returns the parameters used when Solve is passed nil.
func DefaultParameters() *Parameters {
	return &Parameters{
		GapTolerance:                DefaultGapTolerance,
		QpscConvergenceEpsilon:      DefaultQpscConvergenceEpsilon,
		QpscConvergenceQuotient:     DefaultQpscConvergenceQuotient,
		OuterProjectIterationsLimit: -1,
		InnerProjectIterationsLimit: -1,
		Advanced: AdvancedParameters{
			ScaleInQpsc:                    true,
			MinSplitLagrangianThreshold:    DefaultMinSplitLagrangianThreshold,
			UseViolationCache:              true,
			ViolationCacheMinBlocksDivisor: DefaultViolationCacheMinBlocksDivisor,
			ViolationCacheMinBlocksCount:   DefaultViolationCacheMinBlocksCount,
		},
	}
}

func defaultOuterLimit(numVars int) int {
	return 100 * (floorLog2(numVars) + 1)
}

func defaultInnerLimit(numCons int) int {
	return 2*numCons + 100*max(0, floorLog2(numCons))
}

// floorLog2 returns floor(log2(n)) for n >= 1 and 0 otherwise.
func floorLog2(n int) int {
	if n < 1 {
		return 0
	}
	return int(math.Floor(math.Log2(float64(n))))
}

// resolveLimit applies the negative-means-default convention.
func resolveLimit(limit, def int) int {
	if limit < 0 {
		return def
	}
	return limit
}
