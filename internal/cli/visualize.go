package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/pipeline"
	"github.com/matzehuels/projector/pkg/problem"
)

// visualizeCommand creates the visualize command for rendering constraint graphs.
func (c *CLI) visualizeCommand() *cobra.Command {
	var (
		flags      solveFlags
		resultPath string
	)

	cmd := &cobra.Command{
		Use:   "visualize [problem.toml|problem.json]",
		Short: "Render the constraint graph of a problem",
		Long: `Render the constraint graph of a problem.

Variables become nodes labelled with their resolved positions and
constraints become edges labelled with their gaps. Equality constraints are
drawn bold, unsatisfiable ones red and dashed, and --blocks groups variables
that ended up in the same block.

By default the problem is solved first (using the cache). Pass --result with
a JSON result from 'solve' to render it without solving.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProblemFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resultPath != "" {
				return c.runVisualizeResult(cmd.Context(), args[0], resultPath, flags)
			}
			return c.runSolve(cmd.Context(), args[0], "", flags, pipeline.FormatSVG)
		},
	}

	flags.register(cmd, pipeline.FormatSVG)
	cmd.Flags().StringVar(&resultPath, "result", "", "render a previously computed result instead of solving")
	_ = cmd.RegisterFlagCompletionFunc("result", completeResultFiles)
	return cmd
}

// runVisualizeResult renders a stored result against its problem.
func (c *CLI) runVisualizeResult(ctx context.Context, input, resultPath string, flags solveFlags) error {
	formats := parseFormats(flags.formats, pipeline.FormatSVG)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	p, err := c.loadProblem(input, "", flags)
	if err != nil {
		return err
	}
	if err := errors.ValidatePath(resultPath); err != nil {
		return err
	}
	data, err := os.ReadFile(resultPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "read result %s", resultPath)
	}
	res, err := problem.UnmarshalResult(data)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "result %s", resultPath)
	}
	if res.Kind != p.Kind() {
		return errors.New(errors.ErrCodeInvalidInput, "result %s belongs to a %s problem, %s is a %s problem", resultPath, res.Kind, input, p.Kind())
	}

	spinner := newSpinnerWithContext(ctx, "Rendering constraint graph...")
	spinner.Start()
	artifacts, err := pipeline.Render(ctx, p, res, pipeline.Options{
		Problem:  p,
		Formats:  formats,
		Detailed: flags.detailed,
		Blocks:   flags.blocks,
	})
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return fmt.Errorf("visualize: %w", err)
	}
	spinner.StopWithSuccess("Rendered constraint graph")

	return writeArtifacts(artifactWriteParams{
		artifacts: artifacts,
		formats:   formats,
		input:     input,
		output:    flags.output,
	})
}
