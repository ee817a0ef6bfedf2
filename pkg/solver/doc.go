// Package solver places scalar variables on one axis subject to separation
// constraints.
//
// # Overview
//
// Given variables with a desired position dᵢ, a weight wᵢ > 0 and a scale
// sᵢ > 0, the solver finds positions xᵢ minimizing
//
//	Σ wᵢ (xᵢ − dᵢ)²  +  Σ wᵢⱼ (xᵢ − xⱼ)²
//
// subject to constraints of the form
//
//	left·sₗ + gap ≤ right·sᵣ     (or = for equality constraints)
//
// The second sum ranges over neighbor pairs registered with
// [Solver.AddNeighborPair]. This is the numerical core behind overlap
// removal and ordered placement in constraint-based graph layout: callers
// build one problem per axis.
//
// # Algorithm
//
// The solver is an active-set method (VPSC). Variables are grouped into
// blocks, each a rigid group held together by a spanning tree of active
// (tight) constraints. The Project step repeatedly takes the most violated
// constraint and either merges the two blocks it joins or, when both ends
// already share a block, expands that block by releasing the weakest edge
// on the tree path between them. The Split step then releases any active
// constraint whose Lagrange multiplier is negative, since it is holding
// variables together against their pull. Project and Split alternate until
// nothing splits.
//
// Lagrange multipliers are computed by walking each block's constraint
// tree with an explicit stack, so very long chains never recurse.
//
// When neighbor pairs exist (or [AdvancedParameters].ForceQpsc is set) the
// solver switches to gradient projection (QPSC): each pass takes a
// steepest-descent step on the full goal, projects it back onto the
// feasible set with Split and Project, and line-searches along the
// projected direction. Diagonal Hessian scaling is applied by default.
//
// # Failure Modes
//
// Constraints that cannot be satisfied together (for example a cycle of
// equalities that disagree) are never reported as errors. They are marked
// unsatisfiable, skipped from then on, and counted in
// [Solution].NumberOfUnsatisfiableConstraints. Iteration and time limits are
// reported through flags on [Solution]. Errors are reserved for invalid
// arguments (INVALID_ARGUMENT), registration after Solve (INVALID_STATE)
// and numerical breakdown (INTERNAL_ERROR).
//
// # Usage
//
//	s := solver.New()
//	a, _ := s.AddVariable(0)
//	b, _ := s.AddVariable(10)
//	s.AddConstraint(a, b, 20)
//	sol, err := s.Solve(nil)
//	// s.Position(a) ≈ -5, s.Position(b) ≈ 15
//
// # Shell
//
// [Shell] wraps a Solver behind caller-chosen integer ids and adds fixed
// variables. If a fixed variable drifts away from its pinned position, the
// shell shrinks the gaps of the constraints around it and solves again.
package solver
