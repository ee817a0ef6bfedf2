// Package nodelink renders constraint graphs as node-link diagrams.
//
// Variables (or nudge items) appear as boxes ordered left to right, and
// separation constraints as arrows labelled with their gap. When a solved
// result is supplied, labels show resolved positions, unsatisfiable
// constraints are highlighted and blocks can be drawn as clusters.
//
// # Usage
//
//	dot := nodelink.ToDOT(p, res, nodelink.Options{Blocks: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Dependencies
//
// Rendering uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process, so no external binaries are needed.
package nodelink
