package cli

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// inspectCommand creates the inspect command, an interactive solution browser.
func (c *CLI) inspectCommand() *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "inspect [problem.toml|problem.json]",
		Short: "Browse a solution interactively",
		Long: `Solve a problem and browse the result in the terminal.

Each row shows a variable's desired and resolved positions, how far it was
shifted and the block it ended up in. The constraints touching the selected
variable are listed below the table.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProblemFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "ignore cached results and solve again")
	cmd.Flags().DurationVar(&flags.timeLimit, "time-limit", 0, "solver time limit (overrides the problem file)")
	return cmd
}

func (c *CLI) runInspect(ctx context.Context, input string, flags solveFlags) error {
	p, err := c.loadProblem(input, "", flags)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Solving %s...", filepath.Base(input)))
	spinner.Start()
	res, err := runner.Solve(ctx, pipelineOptions(p, flags, c.Config.Cache.TTL))
	if err != nil {
		spinner.StopWithError("Solve failed")
		return err
	}
	spinner.Stop()

	model := NewInspectModel(p, res)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	return nil
}
