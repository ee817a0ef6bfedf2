// Package pkg provides the libraries behind projector, a solver for
// one-dimensional separation constraint problems.
//
// # Overview
//
// A projection problem places variables on a line. Each variable has a
// desired position and a weight; constraints of the form
// "left + gap <= right" (or "==") must hold. The solver moves the variables
// as little as possible, in the weighted least-squares sense, to satisfy
// them. Layout engines use this to remove overlaps along one axis.
//
//  1. [solver] - the projection solver (blocks, merge/split, QPSC)
//  2. [nudge] - uniform-separation nudging built on the solver
//  3. [problem] - problem files (TOML/JSON) and results
//  4. [pipeline] - orchestration (solve → render) with caching
//  5. [render/nodelink] - constraint graphs as DOT, SVG and PNG
//  6. [cache] - file, Redis and MongoDB result caches
//
// Supporting packages: [dag] (ordering graphs and cycle breaking),
// [errors] (structured error codes), [observability] (hooks) and
// [buildinfo] (version metadata).
//
// # Architecture
//
//	problem file (TOML/JSON)
//	         ↓
//	    [problem] package (decode + validate)
//	         ↓
//	    [solver] / [nudge] packages (project)
//	         ↓
//	    [render/nodelink] package (optional constraint graph)
//	         ↓
//	    JSON/DOT/SVG/PNG output
//
// # Quick Start
//
//	s := solver.New()
//	a, _ := s.AddVariable(0)
//	b, _ := s.AddVariable(10)
//	s.AddConstraint(a, b, 20)
//	if _, err := s.Solve(nil); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s.Position(a), s.Position(b)) // -5 15
//
// For the command-line interface, see cmd/projector.
package pkg
