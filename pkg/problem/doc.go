// Package problem defines the file format for projection and nudging
// problems and turns a decoded file into a solved [Result].
//
// A problem is written in TOML or JSON. Variables are named by string ids
// and constraints refer to them by id:
//
//	name = "labels"
//
//	[[variables]]
//	id = "a"
//	desired = 0.0
//
//	[[variables]]
//	id = "b"
//	desired = 10.0
//	weight = 2.0
//
//	[[constraints]]
//	left = "a"
//	right = "b"
//	gap = 20.0
//
//	[parameters]
//	gap_tolerance = 1e-4
//
// A file with a [nudge] table instead describes items to be spread with a
// uniform separation; see [Nudge].
//
// Parameters absent from the file keep the values of
// solver.DefaultParameters.
package problem
