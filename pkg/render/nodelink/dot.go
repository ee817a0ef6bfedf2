package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/projector/pkg/problem"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds desired position, weight and scale to node labels.
	Detailed bool
	// Blocks draws each solved block as a cluster. Ignored without a result.
	Blocks bool
}

// ToDOT converts a problem, and optionally its result, to Graphviz DOT.
// Variables become nodes laid out left to right; constraints become edges
// from left to right variable. With a result, node labels carry resolved
// positions, unsatisfiable constraints are drawn red and dashed, and for
// nudge problems removed ordering constraints are drawn dotted.
func ToDOT(p *problem.Problem, res *problem.Result, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if p.Nudge != nil {
		writeNudge(&buf, p.Nudge, res, opts)
	} else {
		writeProjection(&buf, p, res, opts)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeProjection(buf *bytes.Buffer, p *problem.Problem, res *problem.Result, opts Options) {
	if res != nil && opts.Blocks {
		for i, b := range res.Blocks {
			if len(b) < 2 {
				continue
			}
			fmt.Fprintf(buf, "  subgraph cluster_%d {\n", i)
			buf.WriteString("    style=\"rounded,dashed\";\n    color=grey;\n")
			fmt.Fprintf(buf, "    label=%q;\n", fmt.Sprintf("block %d", i))
			for _, id := range b {
				fmt.Fprintf(buf, "    %q;\n", id)
			}
			buf.WriteString("  }\n")
		}
	}

	for _, v := range p.Variables {
		label := v.ID
		if opts.Detailed {
			label += fmt.Sprintf("\ndesired: %s", fmtNum(v.Desired))
			if v.Weight != nil && *v.Weight != 1 {
				label += fmt.Sprintf("\nweight: %s", fmtNum(*v.Weight))
			}
			if v.Scale != nil && *v.Scale != 1 {
				label += fmt.Sprintf("\nscale: %s", fmtNum(*v.Scale))
			}
		}
		if res != nil {
			if pos, ok := res.PositionOf(v.ID); ok {
				label += fmt.Sprintf("\n= %s", fmtNum(pos))
			}
		}
		fmt.Fprintf(buf, "  %q [label=%q];\n", v.ID, label)
	}

	buf.WriteString("\n")
	unsat := make(map[int]bool)
	if res != nil {
		for _, i := range res.Unsatisfiable {
			unsat[i] = true
		}
	}
	for i, c := range p.Constraints {
		attrs := []string{fmt.Sprintf("label=%q", constraintLabel(c))}
		if c.Equality {
			attrs = append(attrs, "penwidth=2", "arrowhead=none")
		}
		if unsat[i] {
			attrs = append(attrs, "color=red", "fontcolor=red", "style=dashed")
		}
		fmt.Fprintf(buf, "  %q -> %q [%s];\n", c.Left, c.Right, strings.Join(attrs, ", "))
	}
	for _, n := range p.Neighbors {
		fmt.Fprintf(buf, "  %q -> %q [dir=none, style=dotted, color=blue, constraint=false];\n", n.A, n.B)
	}
}

func writeNudge(buf *bytes.Buffer, n *problem.Nudge, res *problem.Result, opts Options) {
	for _, it := range n.Items {
		label := it.ID
		if opts.Detailed && !it.Fixed {
			label += fmt.Sprintf("\nideal: %s\nwidth: %s", fmtNum(it.Ideal), fmtNum(it.Width))
		}
		if res != nil {
			if pos, ok := res.PositionOf(it.ID); ok {
				label += fmt.Sprintf("\n= %s", fmtNum(pos))
			}
		}
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if it.Fixed {
			attrs = append(attrs, "fillcolor=lightgrey")
		}
		fmt.Fprintf(buf, "  %q [%s];\n", it.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	removed := make(map[problem.NudgeOrder]bool)
	if res != nil {
		for _, r := range res.RemovedConstraints {
			removed[r] = true
		}
	}
	for _, c := range n.Constraints {
		if removed[c] {
			fmt.Fprintf(buf, "  %q -> %q [style=dotted, color=grey, constraint=false];\n", c.Left, c.Right)
			continue
		}
		fmt.Fprintf(buf, "  %q -> %q;\n", c.Left, c.Right)
	}
}

func constraintLabel(c problem.Constraint) string {
	if c.Equality {
		return "= " + fmtNum(c.Gap)
	}
	return ">= " + fmtNum(c.Gap)
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	data, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(data), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales with its
// container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
