// Package pipeline runs the solve → render pipeline shared by the CLI and
// the HTTP server.
//
// # Architecture
//
// The pipeline has two stages:
//
//  1. Solve: project the problem (or nudge its items) with the solver,
//     consulting the result cache first
//  2. Render: produce the requested artifacts (JSON result, DOT, SVG, PNG)
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Problem: p,
//	    Formats: []string{pipeline.FormatJSON, pipeline.FormatSVG},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/projector/pkg/problem"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// DefaultTTL is how long solved results stay cached.
const DefaultTTL = 7 * 24 * time.Hour

// Options configures one pipeline run.
type Options struct {
	Problem *problem.Problem `json:"problem"`

	// Formats lists the artifacts to render. Default: json.
	Formats []string `json:"formats,omitempty"`
	// Detailed adds inputs to diagram labels.
	Detailed bool `json:"detailed,omitempty"`
	// Blocks draws solver blocks as clusters in diagrams.
	Blocks bool `json:"blocks,omitempty"`
	// Refresh bypasses the cache lookup; the fresh result is still stored.
	Refresh bool `json:"refresh,omitempty"`
	// TTL overrides DefaultTTL for the cached result.
	TTL time.Duration `json:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
	RunID  string      `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Result is the solved problem.
	Result *problem.Result

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	SolveTime  time.Duration
	RenderTime time.Duration
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: json, dot, svg, png)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Problem == nil {
		return fmt.Errorf("problem is required")
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	o.Formats = slices.Compact(slices.Sorted(slices.Values(o.Formats)))
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// NeedsRender reports whether any format beyond the JSON result was asked for.
func (o *Options) NeedsRender() bool {
	for _, f := range o.Formats {
		if f != FormatJSON {
			return true
		}
	}
	return false
}
