package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/pipeline"
	"github.com/matzehuels/projector/pkg/problem"
)

// solveFlags are shared by solve, nudge and visualize.
type solveFlags struct {
	output    string
	formats   string
	noCache   bool
	refresh   bool
	detailed  bool
	blocks    bool
	timeLimit time.Duration
	quiet     bool
}

func (f *solveFlags) register(cmd *cobra.Command, fallback string) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (single format) or base path (multiple); - for stdout")
	cmd.Flags().StringVarP(&f.formats, "format", "f", "", "output format(s): json, dot, svg, png (comma-separated, default "+fallback+")")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached results and solve again")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "label nodes with desired positions and weights")
	cmd.Flags().BoolVar(&f.blocks, "blocks", false, "group variables by block in graph output")
	cmd.Flags().DurationVar(&f.timeLimit, "time-limit", 0, "solver time limit (overrides the problem file)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print the solution table")
}

// solveCommand creates the solve command for projection problems.
func (c *CLI) solveCommand() *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "solve [problem.toml|problem.json]",
		Short: "Project variables onto their separation constraints",
		Long: `Solve a projection problem.

The problem file lists variables with desired positions and weights,
separation constraints "left + gap <= right" (or equalities), and optional
neighbor pairs. Every position is moved as little as possible, in the
weighted least-squares sense, to satisfy the constraints.

Results are cached locally; use --refresh to solve again.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProblemFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSolve(cmd.Context(), args[0], problem.KindSolve, flags, pipeline.FormatJSON)
		},
	}
	flags.register(cmd, pipeline.FormatJSON)
	return cmd
}

// nudgeCommand creates the nudge command for uniform-separation problems.
func (c *CLI) nudgeCommand() *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "nudge [problem.toml|problem.json]",
		Short: "Spread items apart with a uniform minimum separation",
		Long: `Solve a nudging problem.

Items are moved towards their ideal positions while keeping at least the
configured separation (plus half their widths) between every ordered pair.
Fixed items hold their current position, and cyclic orderings are broken
deterministically.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProblemFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSolve(cmd.Context(), args[0], problem.KindNudge, flags, pipeline.FormatJSON)
		},
	}
	flags.register(cmd, pipeline.FormatJSON)
	return cmd
}

// loadProblem reads input and applies flag and config overrides.
func (c *CLI) loadProblem(input, kind string, flags solveFlags) (*problem.Problem, error) {
	if err := errors.ValidatePath(input); err != nil {
		return nil, err
	}
	p, err := problem.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("load problem %s: %w", input, err)
	}
	if kind != "" && p.Kind() != kind {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s is a %s problem; use '%s %s'", input, p.Kind(), appName, p.Kind())
	}
	switch {
	case flags.timeLimit > 0:
		p.Parameters.TimeLimit = flags.timeLimit
	case p.Parameters.TimeLimit == 0:
		p.Parameters.TimeLimit = c.Config.Solver.TimeLimit
	}
	return p, nil
}

// runSolve solves input and writes the requested artifacts.
func (c *CLI) runSolve(ctx context.Context, input, kind string, flags solveFlags, fallback string) error {
	formats := parseFormats(flags.formats, fallback)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	p, err := c.loadProblem(input, kind, flags)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Solving %s...", filepath.Base(input)))
	spinner.Start()

	opts := pipelineOptions(p, flags, c.Config.Cache.TTL)
	opts.Formats = formats
	opts.Logger = logger
	out, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Solve failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Solved %s", filepath.Base(input)),
		"converged", out.Result.Converged,
		"cache_hit", out.Result.CacheHit)

	toStdout := flags.output == "-"
	if !flags.quiet && !toStdout {
		printSolution(out.Result)
	}
	return writeArtifacts(artifactWriteParams{
		artifacts: out.Artifacts,
		formats:   formats,
		input:     input,
		output:    flags.output,
	})
}

func pipelineOptions(p *problem.Problem, flags solveFlags, ttl time.Duration) pipeline.Options {
	return pipeline.Options{
		Problem:  p,
		Detailed: flags.detailed,
		Blocks:   flags.blocks,
		Refresh:  flags.refresh,
		TTL:      ttl,
	}
}

// =============================================================================
// Artifact Output
// =============================================================================

type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string
	output    string
}

// writeArtifacts writes each artifact to its output path, or the single
// requested artifact to stdout when output is "-".
func writeArtifacts(p artifactWriteParams) error {
	if p.output == "-" {
		if len(p.formats) != 1 {
			return errors.New(errors.ErrCodeInvalidArgument, "stdout output needs exactly one format, got %d", len(p.formats))
		}
		_, err := os.Stdout.Write(p.artifacts[p.formats[0]])
		return err
	}
	if p.output != "" {
		if err := errors.ValidatePath(p.output); err != nil {
			return err
		}
	}

	for _, format := range p.formats {
		path := artifactPath(p.input, p.output, format, len(p.formats) > 1)
		if err := os.WriteFile(path, p.artifacts[format], 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
		}
		printFile(path)
	}
	return nil
}

// artifactPath derives the output file for one format. Without an explicit
// output the result sits next to the input as <name>.solution.<format>.
func artifactPath(input, output, format string, multiple bool) string {
	switch {
	case output != "" && !multiple:
		return output
	case output != "":
		return strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
	default:
		return strings.TrimSuffix(input, filepath.Ext(input)) + ".solution." + format
	}
}
