package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/projector/pkg/problem"
	"github.com/matzehuels/projector/pkg/render/nodelink"
)

// Render generates output artifacts in the requested formats.
func Render(ctx context.Context, p *problem.Problem, res *problem.Result, opts Options) (map[string][]byte, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, err
	}
	artifacts := make(map[string][]byte, len(opts.Formats))

	var dot string
	if opts.NeedsRender() {
		dot = nodelink.ToDOT(p, res, nodelink.Options{Detailed: opts.Detailed, Blocks: opts.Blocks})
	}

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatJSON:
			data, err = problem.MarshalResult(res)
		case FormatDOT:
			data = []byte(dot)
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, dot)
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, dot)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}
