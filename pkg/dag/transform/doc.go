// Package transform provides graph transformations that prepare an
// ordering graph for constraint generation.
//
// # Cycle Breaking
//
// [BreakCycles] removes the back edges found by a depth-first search so the
// remaining "left of" relations are consistent. The traversal order is
// fixed by node IDs, which makes the result reproducible: the same input
// graph always loses the same edges and therefore always yields the same
// solver problem.
//
// The search uses an explicit stack, so long chains of relations do not
// deepen the goroutine stack.
package transform
